// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/insiderwatch/internal/api"
	"github.com/tomtom215/insiderwatch/internal/config"
	"github.com/tomtom215/insiderwatch/internal/detection"
	"github.com/tomtom215/insiderwatch/internal/ingest"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/rules"
	"github.com/tomtom215/insiderwatch/internal/scheduler"
	"github.com/tomtom215/insiderwatch/internal/source"
	"github.com/tomtom215/insiderwatch/internal/state"
	"github.com/tomtom215/insiderwatch/internal/storage"
	"github.com/tomtom215/insiderwatch/internal/supervisor"
	"github.com/tomtom215/insiderwatch/internal/supervisor/services"
	ws "github.com/tomtom215/insiderwatch/internal/websocket"
)

// app holds every long-lived component built at startup.
type app struct {
	cfg *config.Config

	store       *storage.ResilientStore
	checkpoints *storage.CheckpointStore
	states      *state.Store
	engine      *detection.Engine
	scheduler   *scheduler.Scheduler
	hub         *ws.Hub
	server      *http.Server

	nats     *ingest.EmbeddedServer
	ingestor *ingest.NATSIngestor
	inbox    *ingest.InboxWatcher
	closers  []io.Closer
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	a.states, err = state.NewStore(cfg.Users)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.CheckpointPath != "" {
		a.checkpoints, err = storage.OpenCheckpointStore(storage.CheckpointConfig{
			Path:   cfg.Storage.CheckpointPath,
			Retain: cfg.Storage.CheckpointRetain,
		})
		if err != nil {
			return nil, fmt.Errorf("open checkpoints: %w", err)
		}
		a.restoreCheckpoint(ctx)
	}

	rr := rules.New(cfg.Rules.Activities, cfg.Rules.DefaultRisk)
	rnd := source.NewRand(cfg.Engine.Seed)

	sim, err := source.NewSimulator(source.SimulatorConfig{
		Users:      cfg.Users,
		Activities: rr.Activities(),
		Rand:       rnd,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("create simulator: %w", err)
	}
	fallback := source.NewFallback(store, sim, source.FallbackConfig{
		RetryInitial: cfg.Storage.RetryInitial,
		RetryMax:     cfg.Storage.RetryMax,
	})
	if counts, err := store.Counts(ctx); err != nil {
		logging.Warn().Err(err).Msg("Could not count stored events, starting in simulation mode")
	} else if counts.UnprocessedEvents > 0 {
		fallback.SwitchToReplay()
		logging.Info().Int64("unprocessed", counts.UnprocessedEvents).Msg("Resuming replay of stored events")
	}

	a.engine, err = detection.NewEngine(detection.Deps{
		State:     a.states,
		Rules:     rr,
		Source:    fallback,
		Incidents: store,
		Rand:      rnd,
	}, detection.FromSettings(cfg.Engine, cfg.Scheduler))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.registerNotifiers()

	a.hub = ws.NewHub()
	a.engine.SetBroadcaster(a.hub)
	a.scheduler = scheduler.New(a.engine, scheduler.FromSettings(cfg.Scheduler))

	loader := source.NewLoader(source.LoaderConfig{
		KnownUser:     a.states.Known,
		KnownActivity: rr.Known,
	})

	if err := a.buildIngest(loader); err != nil {
		return nil, err
	}

	a.server = a.buildHTTPServer(loader)
	return a, nil
}

// restoreCheckpoint seeds the state store from the newest checkpoint.
func (a *app) restoreCheckpoint(ctx context.Context) {
	cp, err := a.checkpoints.Latest(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Could not read latest risk checkpoint")
		return
	}
	if cp == nil {
		return
	}
	n := a.states.Restore(cp.States)
	logging.Info().
		Time("checkpoint", cp.Timestamp).
		Int("users", n).
		Msg("Restored risk scores from checkpoint")
}

func (a *app) registerNotifiers() {
	n := a.cfg.Notify

	if n.Webhook.URL != "" {
		a.engine.RegisterNotifier(detection.NewWebhookNotifier(detection.WebhookConfig{
			WebhookURL:  n.Webhook.URL,
			Headers:     n.Webhook.Headers,
			Enabled:     true,
			RateLimitMs: n.Webhook.RateLimitMS,
			Timeout:     n.Webhook.Timeout,
		}))
		logging.Info().Msg("Webhook notifier enabled")
	}

	if len(n.Kafka.Brokers) > 0 {
		kn, err := detection.NewKafkaNotifier(detection.KafkaConfig{Brokers: n.Kafka.Brokers, Topic: n.Kafka.Topic})
		if err != nil {
			logging.Warn().Err(err).Msg("Kafka notifier disabled")
		} else {
			a.engine.RegisterNotifier(kn)
			a.closers = append(a.closers, kn)
			logging.Info().Strs("brokers", n.Kafka.Brokers).Str("topic", n.Kafka.Topic).Msg("Kafka notifier enabled")
		}
	}

	if n.Redis.Addr != "" {
		rn, err := detection.NewRedisNotifier(detection.RedisConfig{
			Addr:     n.Redis.Addr,
			Password: n.Redis.Password,
			DB:       n.Redis.DB,
			Channel:  n.Redis.Channel,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Redis notifier disabled")
			return
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rn.Ping(pingCtx); err != nil {
			logging.Warn().Err(err).Str("addr", n.Redis.Addr).Msg("Redis not reachable yet, publishing will retry per incident")
		}
		cancel()
		a.engine.RegisterNotifier(rn)
		a.closers = append(a.closers, rn)
		logging.Info().Str("addr", n.Redis.Addr).Msg("Redis notifier enabled")
	}
}

func (a *app) buildIngest(loader *source.Loader) error {
	n := a.cfg.Ingest.NATS
	if n.Enabled {
		clientURL := ""
		if n.Embedded {
			srvCfg := ingest.ServerConfigFromSettings(n)
			srv, err := ingest.NewEmbeddedServer(&srvCfg)
			if err != nil {
				return fmt.Errorf("start embedded NATS: %w", err)
			}
			a.nats = srv
			clientURL = srv.ClientURL()
		}
		subCfg := ingest.SubscriberConfigFromSettings(n, clientURL)
		a.ingestor = ingest.NewNATSIngestor(subCfg, ingest.NewEventHandler(loader, a.engine))
		logging.Info().Str("url", subCfg.URL).Str("subject", subCfg.Subject).Msg("NATS ingest enabled")
	}

	if dir := a.cfg.Ingest.Inbox.Dir; dir != "" {
		a.inbox = ingest.NewInboxWatcher(ingest.InboxConfig{Dir: dir}, loader, a.engine)
		logging.Info().Str("dir", dir).Msg("Inbox watcher enabled")
	}
	return nil
}

func (a *app) buildHTTPServer(loader *source.Loader) *http.Server {
	deps := api.Deps{
		Engine:    a.engine,
		Scheduler: a.scheduler,
		Store:     a.store,
		Loader:    loader,
		Breaker:   a.store,
		WebSocket: ws.NewHandler(a.hub, a.cfg.Server.CORSOrigins, func() interface{} { return a.engine.Snapshot() }),
		LoadScope: api.LoadScope{
			Dir:   a.cfg.Server.LoadDir,
			Hosts: a.cfg.Server.LoadAllowedHosts,
		},
		Version: version,
	}
	if a.checkpoints != nil {
		deps.Checkpoints = a.checkpoints
	}
	logging.Info().
		Str("load_dir", a.cfg.Server.LoadDir).
		Strs("load_allowed_hosts", a.cfg.Server.LoadAllowedHosts).
		Msg("Load endpoint scope")

	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: a.cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  a.cfg.Server.RateLimitRequests,
		RateLimitWindow:    a.cfg.Server.RateLimitWindow,
		RateLimitDisabled:  a.cfg.Server.RateLimitDisabled,
	})
	if a.cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED")
	}

	return &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandler(deps), mw).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.Timeout,
		WriteTimeout:      a.cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}

// register adds every service to its layer.
func (a *app) register(tree *supervisor.SupervisorTree) {
	logger := logging.Logger()

	tree.AddDataService(services.NewStorageMonitorService(a.store, services.StorageMonitorConfig{
		RetryInitial: a.cfg.Storage.RetryInitial,
		RetryMax:     a.cfg.Storage.RetryMax,
	}, logger))
	if a.checkpoints != nil {
		tree.AddDataService(services.NewCheckpointService(a.states, a.checkpoints, a.cfg.Storage.CheckpointInterval, logger))
	}
	if a.nats != nil {
		tree.AddDataService(services.NewEmbeddedNATSService(a.nats, logger))
	}

	tree.AddMessagingService(a.scheduler)
	tree.AddMessagingService(a.hub)
	if a.ingestor != nil {
		tree.AddMessagingService(a.ingestor)
	}
	if a.inbox != nil {
		tree.AddMessagingService(a.inbox)
	}

	tree.AddAPIService(services.NewHTTPServerService(a.server, 10*time.Second))
}

// close releases resources after the tree has stopped.
func (a *app) close() {
	a.engine.Wait()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing notifier")
		}
	}
	if a.checkpoints != nil {
		if err := a.checkpoints.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}
	if err := a.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing storage")
	}
}
