// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTick(t *testing.T) {
	before := testutil.ToFloat64(TicksTotal.WithLabelValues(TickRejected))
	RecordTick(TickRejected, 2*time.Millisecond)
	after := testutil.ToFloat64(TicksTotal.WithLabelValues(TickRejected))
	if after-before != 1 {
		t.Errorf("rejected ticks increased by %v, want 1", after-before)
	}
}

func TestRecordRetrain(t *testing.T) {
	ok := testutil.ToFloat64(RetrainsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(RetrainsTotal.WithLabelValues("failure"))

	RecordRetrain(nil)
	RecordRetrain(errors.New("not enough samples"))

	if got := testutil.ToFloat64(RetrainsTotal.WithLabelValues("success")) - ok; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RetrainsTotal.WithLabelValues("failure")) - failed; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}

func TestSetSourceModeIsOneHot(t *testing.T) {
	SetSourceMode("simulation")
	if testutil.ToFloat64(SourceMode.WithLabelValues("simulation")) != 1 {
		t.Error("simulation should be 1")
	}
	if testutil.ToFloat64(SourceMode.WithLabelValues("replay")) != 0 {
		t.Error("replay should be 0")
	}

	SetSourceMode("replay")
	if testutil.ToFloat64(SourceMode.WithLabelValues("simulation")) != 0 {
		t.Error("simulation should be 0 after switching")
	}
}

func TestRecordUserRisk(t *testing.T) {
	RecordUserRisk(map[string]float64{"metrics-u1": 12.5, "metrics-u2": 0}, 1)

	if got := testutil.ToFloat64(UserRiskScore.WithLabelValues("metrics-u1")); got != 12.5 {
		t.Errorf("u1 risk gauge = %v, want 12.5", got)
	}
	if got := testutil.ToFloat64(UsersLocked); got != 1 {
		t.Errorf("locked gauge = %v, want 1", got)
	}
}

func TestRecordStorageOp(t *testing.T) {
	before := testutil.ToFloat64(StorageErrors.WithLabelValues("append_incident"))
	RecordStorageOp("append_incident", time.Millisecond, nil)
	RecordStorageOp("append_incident", time.Millisecond, errors.New("disk full"))
	if got := testutil.ToFloat64(StorageErrors.WithLabelValues("append_incident")) - before; got != 1 {
		t.Errorf("storage error delta = %v, want 1", got)
	}
}

func TestRecordNotification(t *testing.T) {
	sent := testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook"))
	errs := testutil.ToFloat64(NotifierErrors.WithLabelValues("webhook"))

	RecordNotification("webhook", nil)
	RecordNotification("webhook", errors.New("timeout"))

	if testutil.ToFloat64(NotificationsSent.WithLabelValues("webhook"))-sent != 1 {
		t.Error("expected one sent notification")
	}
	if testutil.ToFloat64(NotifierErrors.WithLabelValues("webhook"))-errs != 1 {
		t.Error("expected one notifier error")
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/users", 200, 3*time.Millisecond)
	if n := testutil.CollectAndCount(APIRequestDuration); n == 0 {
		t.Error("expected at least one api duration series")
	}
}
