// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package rules maps activity kinds to their base risk delta.
//
// A Rules value is built once at startup and never changes for the lifetime
// of the process, so it is safe for concurrent use without locking.
package rules

import "sort"

// Built-in activity kinds.
const (
	ActivityNormal                = "normal"
	ActivityFileDownload          = "file_download"
	ActivityLoginFromUnusualIP    = "login_from_unusual_ip"
	ActivityAccessSensitiveFolder = "access_sensitive_folder"
	ActivityDataCopyToUSB         = "data_copy_to_usb"
)

// DefaultActivities returns the stock activity to risk mapping.
func DefaultActivities() map[string]float64 {
	return map[string]float64{
		ActivityNormal:                0,
		ActivityFileDownload:          5,
		ActivityLoginFromUnusualIP:    8,
		ActivityAccessSensitiveFolder: 10,
		ActivityDataCopyToUSB:         15,
	}
}

var descriptions = map[string]string{
	ActivityNormal:                "Normal Activity",
	ActivityFileDownload:          "File Download Detected",
	ActivityLoginFromUnusualIP:    "Login from Unusual IP Address",
	ActivityAccessSensitiveFolder: "Access to Sensitive Folder",
	ActivityDataCopyToUSB:         "Data Copy to USB Device",
}

// Rules is an immutable activity to risk lookup.
type Rules struct {
	deltas      map[string]float64
	defaultRisk float64
	kinds       []string
}

// New copies activities into a Rules. Activities not in the map score defaultRisk.
func New(activities map[string]float64, defaultRisk float64) *Rules {
	deltas := make(map[string]float64, len(activities))
	kinds := make([]string, 0, len(activities))
	for k, v := range activities {
		deltas[k] = v
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return &Rules{
		deltas:      deltas,
		defaultRisk: defaultRisk,
		kinds:       kinds,
	}
}

// Default returns the stock rule set with a default of 0.
func Default() *Rules {
	return New(DefaultActivities(), 0)
}

// RiskFor returns the base risk delta for an activity.
func (r *Rules) RiskFor(activity string) float64 {
	if v, ok := r.deltas[activity]; ok {
		return v
	}
	return r.defaultRisk
}

// Known reports whether activity has an explicit mapping.
func (r *Rules) Known(activity string) bool {
	_, ok := r.deltas[activity]
	return ok
}

// Activities returns the mapped activity kinds in sorted order.
func (r *Rules) Activities() []string {
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Describe returns a human-readable label for an activity.
func Describe(activity string) string {
	if d, ok := descriptions[activity]; ok {
		return d
	}
	return activity
}
