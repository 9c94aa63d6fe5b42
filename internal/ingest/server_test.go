// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func startEmbedded(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   16 << 20,
		JetStreamMaxStore: 64 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestEmbeddedServer_Lifecycle(t *testing.T) {
	srv := startEmbedded(t)

	if !srv.IsRunning() {
		t.Error("server should be running")
	}
	if !srv.JetStreamEnabled() {
		t.Error("JetStream should be enabled")
	}
	if srv.ClientURL() == "" {
		t.Error("ClientURL should be set")
	}
}

func TestEmbeddedServer_EnsureStream(t *testing.T) {
	srv := startEmbedded(t)
	ctx := context.Background()

	cfg := StreamConfigFor(DefaultSubscriberConfig())
	cfg.MaxBytes = 1 << 20

	for i := 0; i < 2; i++ {
		if err := EnsureStreamAt(ctx, srv.ClientURL(), cfg); err != nil {
			t.Fatalf("EnsureStreamAt #%d: %v", i+1, err)
		}
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := js.Publish(ctx, "insiderwatch.events", []byte(`{"user_id":"user_A","activity":"normal"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	stream, err := js.Stream(ctx, cfg.Name)
	if err != nil {
		t.Fatal(err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.State.Msgs != 1 {
		t.Errorf("stream messages = %d, want 1", info.State.Msgs)
	}
}

func TestEmbeddedServer_Shutdown(t *testing.T) {
	srv := startEmbedded(t)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if srv.IsRunning() {
		t.Error("server should be stopped after Shutdown")
	}
}
