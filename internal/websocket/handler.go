// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/insiderwatch/internal/logging"
)

// MessageTypeSnapshot is the type of the welcome message.
const MessageTypeSnapshot = "snapshot"

// Handler upgrades HTTP requests and registers the connection with a hub.
type Handler struct {
	hub      *Hub
	origins  map[string]bool
	anyOrig  bool
	snapshot func() interface{}
	upgrader websocket.Upgrader
}

// NewHandler creates an upgrade handler. Origins lists the allowed browser
// origins; "*" allows all. When snapshot is set, every new client first
// receives its result as a "snapshot" message.
func NewHandler(hub *Hub, origins []string, snapshot func() interface{}) *Handler {
	h := &Handler{
		hub:      hub,
		origins:  make(map[string]bool, len(origins)),
		snapshot: snapshot,
	}
	for _, o := range origins {
		if o == "*" {
			h.anyOrig = true
		}
		h.origins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.anyOrig || h.origins[origin] {
		return true
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn)
	if h.snapshot != nil {
		client.Queue(Message{Type: MessageTypeSnapshot, Data: h.snapshot()})
	}
	h.hub.Register <- client
	client.Start()
}
