package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/events"
)

// StreamHandler pushes clock events to clients over SSE and WebSocket.
// Both transports carry the same message envelope; a new connection
// always receives a clock_sync first so late joiners can reconcile
// without replaying history.
type StreamHandler struct {
	bus   *events.Bus
	clock *clock.Clock
	log   zerolog.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(bus *events.Bus, c *clock.Clock, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		bus:   bus,
		clock: c,
		log:   log.With().Str("handler", "stream").Logger(),
	}
}

// parseTypesFilter builds the allowed-event set from ?types=a,b,c.
// A nil map means no filter.
func parseTypesFilter(r *http.Request) map[events.EventType]bool {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		allowed[events.EventType(strings.TrimSpace(t))] = true
	}
	return allowed
}

// syncMessage is the initial message sent on every new connection.
func (h *StreamHandler) syncMessage() events.Message {
	return events.Message{
		Event:     events.ClockSync,
		Data:      h.clock.GetState(),
		Timestamp: time.Now().UTC(),
	}
}

// HandleSSE handles GET /api/clock/stream (Server-Sent Events).
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	allowed := parseTypesFilter(r)

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	h.log.Info().Str("subscriber_id", sub.ID()).Msg("SSE client connected")

	writeSSE := func(msg events.Message) bool {
		payload, err := json.Marshal(msg)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode stream message")
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeSSE(h.syncMessage()) {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().
				Str("subscriber_id", sub.ID()).
				Uint64("dropped", sub.Dropped()).
				Msg("SSE client disconnected")
			return

		case msg := <-sub.C():
			if allowed != nil && !allowed[msg.Event] {
				continue
			}
			if !writeSSE(msg) {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleWebSocket handles GET /api/clock/ws.
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin policy is enforced by the CORS middleware upstream.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	allowed := parseTypesFilter(r)

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	h.log.Info().Str("subscriber_id", sub.ID()).Msg("WebSocket client connected")

	// Clients only receive; CloseRead surfaces disconnects as context
	// cancellation.
	ctx := conn.CloseRead(r.Context())

	writeWS := func(msg events.Message) bool {
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, msg); err != nil {
			return false
		}
		return true
	}

	if !writeWS(h.syncMessage()) {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().
				Str("subscriber_id", sub.ID()).
				Uint64("dropped", sub.Dropped()).
				Msg("WebSocket client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case msg := <-sub.C():
			if allowed != nil && !allowed[msg.Event] {
				continue
			}
			if !writeWS(msg) {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
