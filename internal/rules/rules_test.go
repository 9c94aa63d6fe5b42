// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package rules

import "testing"

func TestRules_RiskFor(t *testing.T) {
	t.Parallel()

	r := Default()
	tests := []struct {
		activity string
		want     float64
	}{
		{ActivityNormal, 0},
		{ActivityFileDownload, 5},
		{ActivityLoginFromUnusualIP, 8},
		{ActivityAccessSensitiveFolder, 10},
		{ActivityDataCopyToUSB, 15},
		{"print_document", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := r.RiskFor(tt.activity); got != tt.want {
			t.Errorf("RiskFor(%q) = %v, want %v", tt.activity, got, tt.want)
		}
	}
}

func TestRules_ConfiguredDefault(t *testing.T) {
	t.Parallel()

	r := New(map[string]float64{"vpn_disconnect": 3}, 2)
	if got := r.RiskFor("vpn_disconnect"); got != 3 {
		t.Errorf("RiskFor(vpn_disconnect) = %v, want 3", got)
	}
	if got := r.RiskFor("anything_else"); got != 2 {
		t.Errorf("RiskFor(unknown) = %v, want default 2", got)
	}
	if r.Known("anything_else") {
		t.Error("unmapped activity should not be Known")
	}
}

func TestRules_Immutable(t *testing.T) {
	t.Parallel()

	src := map[string]float64{"normal": 0}
	r := New(src, 0)
	src["normal"] = 99

	if got := r.RiskFor("normal"); got != 0 {
		t.Errorf("mutating the source map changed the rules: got %v", got)
	}

	kinds := r.Activities()
	kinds[0] = "tampered"
	if r.Activities()[0] != "normal" {
		t.Error("Activities() should return a copy")
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	if got := Describe(ActivityDataCopyToUSB); got != "Data Copy to USB Device" {
		t.Errorf("Describe() = %q", got)
	}
	if got := Describe("custom_kind"); got != "custom_kind" {
		t.Errorf("Describe() of unknown kind = %q, want passthrough", got)
	}
}
