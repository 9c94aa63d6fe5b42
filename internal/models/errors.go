// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Match them with errors.Is.
var (
	// ErrUnknownUser means an event referenced a user outside the roster.
	ErrUnknownUser = errors.New("unknown user")

	// ErrMalformedEvent means an event failed field validation.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrClassifierUnavailable means a classifier was not ready, failed or timed out.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrStorageUnavailable means the storage backend cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSourceExhausted signals that a replay source has no more events.
	// It is not a failure.
	ErrSourceExhausted = errors.New("event source exhausted")

	// ErrNoUsers means no valid users are configured.
	ErrNoUsers = errors.New("no valid users configured")

	// ErrEngineStopped is returned by control operations on a stopped engine.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected event.
type ValidationError struct {
	EventID string
	Field   string
	Reason  string
	kind    error
}

// NewUnknownUserError builds a ValidationError for an unknown user.
func NewUnknownUserError(eventID, userID string) *ValidationError {
	return &ValidationError{
		EventID: eventID,
		Field:   "user_id",
		Reason:  fmt.Sprintf("user %q is not in the roster", userID),
		kind:    ErrUnknownUser,
	}
}

// NewMalformedEventError builds a ValidationError for a field failure.
func NewMalformedEventError(eventID, field, reason string) *ValidationError {
	return &ValidationError{
		EventID: eventID,
		Field:   field,
		Reason:  reason,
		kind:    ErrMalformedEvent,
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("event %s rejected: %s", e.EventID, e.Reason)
	}
	return fmt.Sprintf("event %s rejected: %s: %s", e.EventID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.kind == nil {
		return ErrMalformedEvent
	}
	return e.kind
}
