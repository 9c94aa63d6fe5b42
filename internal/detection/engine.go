// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/insiderwatch/internal/classifier"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/rules"
	"github.com/tomtom215/insiderwatch/internal/state"
	"github.com/tomtom215/insiderwatch/internal/validation"
)

// Deps are the collaborators of an Engine. Only State is required.
type Deps struct {
	State     *state.Store
	Rules     *rules.Rules
	Source    Source
	Incidents IncidentStore

	// Anomaly is the initial model. NewAnomaly builds the replacement used
	// by Reset. Nil values use an untrained z-score model.
	Anomaly    classifier.AnomalyClassifier
	NewAnomaly func() classifier.AnomalyClassifier

	Sentiment classifier.SentimentClassifier

	// Rand returns values in [0, 1). It is only called inside the state
	// critical section.
	Rand func() float64
	Now  func() time.Time
}

// Engine scores events against the per-user risk ledger.
type Engine struct {
	cfg        Config
	state      *state.Store
	rules      *rules.Rules
	source     Source
	incidents  IncidentStore
	sentiment  classifier.SentimentClassifier
	newAnomaly func() classifier.AnomalyClassifier
	rnd        func() float64
	now        func() time.Time

	// Guarded by the state.Store lock; touched only inside Apply.
	anomaly   classifier.AnomalyClassifier
	history   *FeatureHistory
	ticks     int64
	incidentN int64
	anomalyN  int64

	rejected atomic.Int64

	mu          sync.RWMutex
	notifiers   []Notifier
	broadcaster Broadcaster

	// In-flight notifier deliveries.
	sends sync.WaitGroup
}

// NewEngine creates a detection engine.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.State == nil {
		return nil, errors.New("detection: state store is required")
	}
	cfg = cfg.normalized()

	e := &Engine{
		cfg:        cfg,
		state:      deps.State,
		rules:      deps.Rules,
		source:     deps.Source,
		incidents:  deps.Incidents,
		sentiment:  deps.Sentiment,
		newAnomaly: deps.NewAnomaly,
		rnd:        deps.Rand,
		now:        deps.Now,
		anomaly:    deps.Anomaly,
		history:    NewFeatureHistory(cfg.FeatureHistorySize),
		notifiers:  make([]Notifier, 0),
	}
	if e.rules == nil {
		e.rules = rules.Default()
	}
	if e.sentiment == nil {
		e.sentiment = classifier.NewLexiconScorer(nil)
	}
	if e.newAnomaly == nil {
		zcfg := classifier.ZScoreConfig{MinSamples: cfg.AnomalyMinSamples, Contamination: cfg.AnomalyContamination}
		e.newAnomaly = func() classifier.AnomalyClassifier { return classifier.NewZScoreModel(zcfg) }
	}
	if e.anomaly == nil {
		e.anomaly = e.newAnomaly()
	}
	if e.rnd == nil {
		e.rnd = rand.Float64
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Config returns the engine's scoring constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// RegisterNotifier adds a notifier to the engine.
func (e *Engine) RegisterNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifiers = append(e.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Bool("enabled", n.Enabled()).Msg("registered notifier")
}

// SetBroadcaster sets the dashboard broadcaster. Nil disables broadcasts.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// Tick pulls one event from the source and processes it. An idle tick
// returns a result with a nil Event. Rejected events are committed so a
// replay queue never stalls on them.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)

	if e.source == nil {
		metrics.RecordTick(metrics.TickError, time.Since(start))
		return nil, errors.New("detection: no event source configured")
	}

	ev, err := e.source.Next(ctx)
	if err != nil {
		metrics.RecordTick(metrics.TickError, time.Since(start))
		return nil, fmt.Errorf("next event: %w", err)
	}
	if ev == nil {
		metrics.RecordTick(metrics.TickIdle, time.Since(start))
		return &TickResult{}, nil
	}

	res, perr := e.Process(ctx, ev)

	if cerr := e.source.Commit(ctx, ev); cerr != nil {
		// Storage outages are logged once by the source.
		if errors.Is(cerr, models.ErrStorageUnavailable) {
			logging.Ctx(ctx).Debug().Err(cerr).Str("event_id", ev.ID).Msg("failed to commit event")
		} else {
			logging.Ctx(ctx).Warn().Err(cerr).Str("event_id", ev.ID).Msg("failed to commit event")
		}
	}

	outcome := metrics.TickProcessed
	if perr != nil {
		outcome = metrics.TickRejected
	}
	metrics.RecordTick(outcome, time.Since(start))
	return res, perr
}

// Process runs one event through the scoring pipeline. A rejected event
// returns a *models.ValidationError and leaves all state untouched.
func (e *Engine) Process(ctx context.Context, ev *models.Event) (*TickResult, error) {
	res := &TickResult{Event: ev}
	log := logging.Ctx(ctx)

	if err := e.validate(ev); err != nil {
		e.rejected.Add(1)
		log.Warn().Err(err).Msg("event rejected")
		return res, err
	}

	delta := e.rules.RiskFor(ev.Activity)
	if ev.RiskIncrease != nil {
		delta = *ev.RiskIncrease
	}
	res.Delta = delta

	var notice *AnomalyNotice
	err := e.state.Apply(func(tx *state.Tx) error {
		st, ok := tx.Get(ev.UserID)
		if !ok {
			return models.NewUnknownUserError(ev.ID, ev.UserID)
		}

		e.ticks++
		st.LastActivityAt = e.activityTime(ev)

		if st.Locked() {
			res.Locked = true
			res.Retrained = e.maybeRetrainLocked(ctx)
			res.State = copyState(st)
			return nil
		}

		notice = e.scoreLocked(ctx, tx, st, ev, delta, res)
		res.State = copyState(st)
		return nil
	})
	if err != nil {
		e.rejected.Add(1)
		log.Warn().Err(err).Msg("event rejected")
		return res, err
	}

	e.report(ctx, res, notice)
	return res, nil
}

// scoreLocked applies steps 3 to 7 for an active user. It returns an
// anomaly notice when the model flagged the user without an incident.
func (e *Engine) scoreLocked(
	ctx context.Context,
	tx *state.Tx,
	st *models.UserRiskState,
	ev *models.Event,
	delta float64,
	res *TickResult,
) *AnomalyNotice {
	st.RiskScore = max(0, st.RiskScore+delta)

	avg, peak := tx.Aggregate()
	sample := classifier.Sample{UserRisk: st.RiskScore, AvgRisk: avg, MaxRisk: peak}
	e.history.Add(sample)
	res.Retrained = e.maybeRetrainLocked(ctx)

	alertType := models.AlertTypeRuleBased
	if e.predictLocked(ctx, sample) {
		st.RiskScore += e.cfg.AnomalyPenalty
		alertType = models.AlertTypeAIAnomaly
		res.Anomaly = true
		e.anomalyN++
	}

	if ev.HasText() && e.rnd() < e.cfg.SentimentProbability {
		if e.polarity(ctx, ev.Details) < e.cfg.NegativeSentimentThreshold {
			st.RiskScore += e.cfg.SentimentPenalty
			res.Sentiment = true
		}
	}

	switch {
	case delta == 0:
		st.SecurityScore += e.cfg.PointsNormal
	case delta <= e.cfg.RiskLow:
		st.SecurityScore += e.cfg.PointsLowRisk
	}
	if st.RiskScore < e.cfg.RiskLow && e.rnd() < e.cfg.LowRiskBonusProbability {
		st.SecurityScore += e.cfg.LowRiskBonus
	}

	if st.RiskScore >= e.cfg.IncidentThreshold {
		res.Incident = e.newIncident(ev, st, alertType)
		st.Status = models.StatusLocked
		st.RiskScore = 0
		st.Incidents++
		e.incidentN++
		return nil
	}

	if res.Anomaly {
		return &AnomalyNotice{
			Timestamp: e.now().UTC(),
			UserID:    st.UserID,
			Role:      st.Role,
			Penalty:   e.cfg.AnomalyPenalty,
			RiskScore: st.RiskScore,
			Message:   anomalyMessage(st.UserID, st.Role, e.cfg.AnomalyPenalty),
		}
	}
	return nil
}

func (e *Engine) validate(ev *models.Event) error {
	if ev == nil {
		return models.NewMalformedEventError("", "", "nil event")
	}
	if verr := validation.ValidateStruct(ev); verr != nil {
		field := ""
		if f := verr.First(); f != nil {
			field = f.Field()
		}
		return models.NewMalformedEventError(ev.ID, field, verr.Error())
	}
	if !e.state.Known(ev.UserID) {
		return models.NewUnknownUserError(ev.ID, ev.UserID)
	}
	return nil
}

func (e *Engine) activityTime(ev *models.Event) time.Time {
	if ev.Timestamp.IsZero() {
		return e.now().UTC()
	}
	return ev.Timestamp
}

// maybeRetrainLocked retrains the anomaly model every RetrainInterval
// accepted events once the history holds enough samples.
func (e *Engine) maybeRetrainLocked(ctx context.Context) bool {
	if e.history.Len() < e.cfg.AnomalyMinSamples || e.ticks%int64(e.cfg.RetrainInterval) != 0 {
		return false
	}

	history := e.history.Snapshot()
	model := e.anomaly
	_, err := callWithTimeout(ctx, e.cfg.ClassifierTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, model.Train(ctx, history)
	})
	metrics.RecordRetrain(err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("samples", len(history)).Msg("anomaly model retrain failed")
		return false
	}
	logging.Ctx(ctx).Info().Int("samples", len(history)).Int64("tick", e.ticks).Msg("anomaly model retrained")
	return true
}

// predictLocked treats every classifier failure as "not anomalous".
func (e *Engine) predictLocked(ctx context.Context, s classifier.Sample) bool {
	model := e.anomaly
	flagged, err := callWithTimeout(ctx, e.cfg.ClassifierTimeout, func(ctx context.Context) (bool, error) {
		return model.Predict(ctx, s)
	})
	if err != nil {
		if !errors.Is(err, models.ErrClassifierUnavailable) {
			logging.Ctx(ctx).Debug().Err(err).Msg("anomaly prediction failed")
		}
		return false
	}
	return flagged
}

// polarity treats every classifier failure as neutral.
func (e *Engine) polarity(ctx context.Context, text string) float64 {
	p, err := callWithTimeout(ctx, e.cfg.ClassifierTimeout, func(ctx context.Context) (float64, error) {
		return e.sentiment.Polarity(ctx, text)
	})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("sentiment scoring failed")
		return 0
	}
	return p
}

// callWithTimeout runs fn in its own goroutine and gives up after timeout.
// The goroutine is left to finish on its own; fn must honour ctx.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", models.ErrClassifierUnavailable, ctx.Err())
	}
}

func (e *Engine) newIncident(ev *models.Event, st *models.UserRiskState, alertType models.AlertType) *models.Incident {
	var msg string
	if alertType == models.AlertTypeAIAnomaly {
		msg = anomalyMessage(st.UserID, st.Role, e.cfg.AnomalyPenalty) + " - Account LOCKED"
	} else {
		msg = fmt.Sprintf("HIGH-RISK ALERT: %s (%s) triggered security incident - Account LOCKED", st.UserID, st.Role)
	}
	return &models.Incident{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		UserID:    st.UserID,
		Role:      st.Role,
		RiskScore: st.RiskScore,
		Message:   msg,
		AlertType: alertType,
		EventID:   ev.ID,
	}
}

func anomalyMessage(userID, role string, penalty float64) string {
	return fmt.Sprintf("AI ALERT: %s (%s) - Anomalous behavior detected (+%g risk)", userID, role, penalty)
}

func copyState(st *models.UserRiskState) *models.UserRiskState {
	c := *st
	return &c
}

// report runs the side effects of a processed event outside the state lock.
func (e *Engine) report(ctx context.Context, res *TickResult, notice *AnomalyNotice) {
	log := logging.Ctx(ctx)

	if res.Locked {
		log.Debug().Str("user_id", res.Event.UserID).Str("activity", res.Event.Activity).Msg("event recorded for locked user")
	}
	if res.Anomaly {
		metrics.AnomaliesTotal.Inc()
		log.Warn().Str("user_id", res.Event.UserID).Float64("penalty", e.cfg.AnomalyPenalty).Msg("anomalous behavior detected")
	}
	if res.Sentiment {
		metrics.SentimentPenaltiesTotal.Inc()
		log.Info().Str("user_id", res.Event.UserID).Float64("penalty", e.cfg.SentimentPenalty).Msg("negative sentiment detected")
	}

	switch {
	case res.Incident != nil:
		e.raise(ctx, res.Incident)
	case notice != nil:
		e.broadcast(MessageAnomaly, notice)
	}

	e.publishSnapshot()
}

// raise persists, notifies and broadcasts an incident.
func (e *Engine) raise(ctx context.Context, inc *models.Incident) {
	metrics.RecordIncident(string(inc.AlertType))
	logging.Ctx(ctx).Warn().
		Str("incident_id", inc.ID).
		Str("user_id", inc.UserID).
		Str("alert_type", string(inc.AlertType)).
		Float64("risk_score", inc.RiskScore).
		Msg(inc.Message)

	if e.incidents != nil {
		if err := e.incidents.AppendIncident(ctx, inc); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("incident_id", inc.ID).Msg("failed to save incident")
		}
	}

	e.notify(ctx, inc)
	e.broadcast(MessageIncident, inc)
}

// notify sends an incident to all enabled notifiers.
func (e *Engine) notify(ctx context.Context, inc *models.Incident) {
	e.mu.RLock()
	notifiers := make([]Notifier, 0, len(e.notifiers))
	for _, n := range e.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	e.mu.RUnlock()

	// Deliveries outlive the tick that raised them.
	base := context.WithoutCancel(ctx)
	for _, notifier := range notifiers {
		e.sends.Add(1)
		go func(n Notifier) {
			defer e.sends.Done()
			sendCtx, cancel := context.WithTimeout(base, e.cfg.NotifyTimeout)
			defer cancel()

			err := n.Send(sendCtx, inc)
			metrics.RecordNotification(n.Name(), err)
			if err != nil {
				logging.Error().Err(err).Str("notifier", n.Name()).Str("incident_id", inc.ID).Msg("failed to send incident")
			}
		}(notifier)
	}
}

// Wait blocks until every in-flight notification has finished.
func (e *Engine) Wait() {
	e.sends.Wait()
}

func (e *Engine) broadcast(messageType string, data interface{}) {
	e.mu.RLock()
	b := e.broadcaster
	e.mu.RUnlock()
	if b == nil {
		return
	}
	b.BroadcastJSON(messageType, data)
}

// publishSnapshot updates the risk gauges and pushes the current state.
func (e *Engine) publishSnapshot() {
	snap := e.Snapshot()

	scores := make(map[string]float64, len(snap.Users))
	for i := range snap.Users {
		scores[snap.Users[i].UserID] = snap.Users[i].RiskScore
	}
	metrics.RecordUserRisk(scores, snap.Stats.LockedUsers)

	e.broadcast(MessageSnapshot, snap)
}

// Announce broadcasts a lifecycle change such as start or pause.
func (e *Engine) Announce(action, detail string) {
	e.broadcast(MessageControl, ControlNotice{
		Timestamp: e.now().UTC(),
		Action:    action,
		Detail:    detail,
	})
}

// Decay lowers every user's risk by the configured amount. Active users earn
// decay points. A locked user whose risk is 0 after decay is unlocked.
func (e *Engine) Decay(ctx context.Context) DecayResult {
	var res DecayResult
	_ = e.state.Apply(func(tx *state.Tx) error {
		tx.Each(func(st *models.UserRiskState) {
			old := st.RiskScore
			st.RiskScore = max(0, old-e.cfg.DecayAmount)
			if st.RiskScore != old {
				res.Decayed++
			}
			if st.Status == models.StatusActive {
				st.SecurityScore += e.cfg.DecayPoints
			}
			if st.Locked() && st.RiskScore == 0 {
				st.Status = models.StatusActive
				res.Unlocked = append(res.Unlocked, st.UserID)
			}
		})
		return nil
	})

	metrics.DecayCyclesTotal.Inc()
	for _, id := range res.Unlocked {
		logging.Ctx(ctx).Info().Str("user_id", id).Msg("account unlocked after risk decay")
	}
	e.publishSnapshot()
	return res
}

// Reset returns every user to the initial state, unlocks all accounts,
// clears the tick counter and feature history and replaces the anomaly
// model with an untrained one. Stored incidents are kept.
func (e *Engine) Reset(ctx context.Context) {
	_ = e.state.Apply(func(tx *state.Tx) error {
		tx.Each(func(st *models.UserRiskState) {
			*st = models.NewUserRiskState(models.User{ID: st.UserID, Role: st.Role})
		})
		e.ticks = 0
		e.incidentN = 0
		e.anomalyN = 0
		e.history.Reset()
		e.anomaly = e.newAnomaly()
		return nil
	})
	e.rejected.Store(0)

	logging.Ctx(ctx).Info().Msg("engine state reset")
	e.Announce("reset", "")
	e.publishSnapshot()
}

// LoadEvents queues evs for replay. The source must implement ReplayLoader.
func (e *Engine) LoadEvents(ctx context.Context, evs []*models.Event) (int, error) {
	loader, ok := e.source.(ReplayLoader)
	if !ok {
		return 0, errors.New("detection: event source does not support loading")
	}
	n, err := loader.Load(ctx, evs)
	if err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Info().Int("events", n).Msg("events queued for replay")
	e.Announce("load", fmt.Sprintf("%d events queued", n))
	return n, nil
}

// Mode returns the source mode, or "" if the source does not report one.
func (e *Engine) Mode() string {
	if mr, ok := e.source.(ModeReporter); ok {
		return mr.Mode()
	}
	return ""
}

// Ticks returns the number of accepted events since start or reset.
func (e *Engine) Ticks() int64 {
	var n int64
	_ = e.state.Apply(func(*state.Tx) error {
		n = e.ticks
		return nil
	})
	return n
}

// Snapshot returns a consistent view of every user plus engine statistics.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{Timestamp: e.now().UTC()}
	_ = e.state.Apply(func(tx *state.Tx) error {
		snap.Users = make([]UserView, 0, len(e.state.Users()))
		tx.Each(func(st *models.UserRiskState) {
			snap.Users = append(snap.Users, UserView{
				UserRiskState: *st,
				Level:         st.Level(e.cfg.RiskLow, e.cfg.RiskMedium),
			})
		})
		snap.Stats = e.statsLocked(tx, snap.Users)
		return nil
	})
	snap.Stats.RejectedEvents = e.rejected.Load()
	snap.Stats.Mode = e.Mode()
	return snap
}

func (e *Engine) statsLocked(tx *state.Tx, users []UserView) Stats {
	avg, peak := tx.Aggregate()
	s := Stats{
		TotalActivities: e.ticks,
		AverageRisk:     avg,
		MaxRisk:         peak,
		Incidents:       e.incidentN,
		Anomalies:       e.anomalyN,
		HistorySize:     e.history.Len(),
		ModelReady:      e.anomaly.IsReady(),
	}
	for i := range users {
		switch users[i].Level {
		case models.RiskLevelLocked:
			s.LockedUsers++
		case models.RiskLevelHigh:
			s.HighRiskUsers++
		}
	}
	return s
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	return e.Snapshot().Stats
}

// User returns one user's view.
func (e *Engine) User(id string) (UserView, bool) {
	st, ok := e.state.Get(id)
	if !ok {
		return UserView{}, false
	}
	return UserView{UserRiskState: st, Level: st.Level(e.cfg.RiskLow, e.cfg.RiskMedium)}, true
}
