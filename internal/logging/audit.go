// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// ControlAction is an operator action against the engine.
type ControlAction string

// Control actions recorded by the audit logger.
const (
	ActionStart  ControlAction = "start"
	ActionStop   ControlAction = "stop"
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionReset  ControlAction = "reset"
	ActionLoad   ControlAction = "load_events"
)

// AuditEvent is one operator action. Details values are sanitized by key.
type AuditEvent struct {
	Action    ControlAction
	RemoteIP  string
	RequestID string
	Success   bool
	Error     string
	Details   map[string]string
}

// AuditLogger writes operator actions under component=audit.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates an audit logger on the global logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logger: With().Str("component", "audit").Logger()}
}

// NewAuditLoggerWithLogger creates an audit logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes ev. Failed actions are logged at warn level.
func (l *AuditLogger) Log(ev *AuditEvent) {
	e := l.logger.Info()
	status := "success"
	if !ev.Success {
		e = l.logger.Warn()
		status = "failed"
	}
	e = e.Str("action", string(ev.Action)).Str("status", status)
	if ev.RemoteIP != "" {
		e = e.Str("remote_ip", ev.RemoteIP)
	}
	if ev.RequestID != "" {
		e = e.Str("request_id", ev.RequestID)
	}
	if ev.Error != "" && !ev.Success {
		e = e.Str("error", truncateString(ev.Error, 200))
	}
	for k, v := range ev.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("engine control")
}

var sensitiveKeys = map[string]bool{
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"cookie":        true,
}

// SanitizeValue masks values whose key looks like a credential and strips
// userinfo from URLs, so a source URL like https://u:p@host/x is safe to log.
func SanitizeValue(key, value string) string {
	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	if scheme, rest, ok := strings.Cut(value, "://"); ok {
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.IndexAny(rest+"/", "/?#") {
			return scheme + "://***@" + rest[at+1:]
		}
	}
	return truncateString(value, 256)
}

// SanitizeToken keeps the first four characters of a secret.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
