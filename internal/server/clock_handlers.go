package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/clock"
)

// ClockHandlers exposes clock control over HTTP. Every mutation is a
// thin call into the clock; the clock publishes the resulting events.
type ClockHandlers struct {
	clock *clock.Clock
	log   zerolog.Logger
}

// NewClockHandlers creates clock handlers.
func NewClockHandlers(c *clock.Clock, log zerolog.Logger) *ClockHandlers {
	return &ClockHandlers{
		clock: c,
		log:   log.With().Str("handler", "clock").Logger(),
	}
}

// HandleStatus handles GET /api/clock/status
func (h *ClockHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     h.clock.GetState(),
		"metadata": meta(),
	})
}

// HandlePresets handles GET /api/clock/presets
func (h *ClockHandlers) HandlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     clock.Presets(),
		"metadata": meta(),
	})
}

// HandlePendingActions handles GET /api/clock/pending-actions
func (h *ClockHandlers) HandlePendingActions(w http.ResponseWriter, r *http.Request) {
	pending := h.clock.PendingActions()
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"actions": pending,
			"count":   len(pending),
		},
		"metadata": meta(),
	})
}

// HandleSetPreset handles POST /api/clock/preset
func (h *ClockHandlers) HandleSetPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Preset == "" {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "preset is required")
		return
	}
	if err := h.clock.SetPreset(req.Preset); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	h.HandleStatus(w, r)
}

// HandleSetInterval handles POST /api/clock/interval
func (h *ClockHandlers) HandleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds == 0 {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "seconds is required")
		return
	}
	h.clock.SetInterval(req.Seconds)
	h.HandleStatus(w, r)
}

// HandleSetMode handles POST /api/clock/mode
func (h *ClockHandlers) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}
	switch clock.Mode(req.Mode) {
	case clock.ModeAuto, clock.ModeManual, clock.ModePaused:
		h.clock.SetMode(clock.Mode(req.Mode))
	default:
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "mode must be auto, manual, or paused")
		return
	}
	h.HandleStatus(w, r)
}

// HandleStart handles POST /api/clock/start
func (h *ClockHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	// The loop outlives the request; it runs until Stop or process exit.
	h.clock.Start(context.Background())
	h.HandleStatus(w, r)
}

// HandleStop handles POST /api/clock/stop
func (h *ClockHandlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.clock.Stop()
	h.HandleStatus(w, r)
}

// HandlePause handles POST /api/clock/pause
func (h *ClockHandlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.clock.Pause()
	h.HandleStatus(w, r)
}

// HandleResume handles POST /api/clock/resume
func (h *ClockHandlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.clock.Resume()
	h.HandleStatus(w, r)
}

// HandleForceTick handles POST /api/clock/force-tick
func (h *ClockHandlers) HandleForceTick(w http.ResponseWriter, r *http.Request) {
	// Runs in the request goroutine so the response reflects the
	// committed month. The clock's guard makes concurrent calls no-ops.
	h.clock.ForceTick(r.Context())
	h.HandleStatus(w, r)
}

// HandleReset handles POST /api/clock/reset
func (h *ClockHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month int `json:"month"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Month < 1 {
		req.Month = 1
	}
	h.clock.Reset(req.Month)
	h.HandleStatus(w, r)
}

// HandleQueueAction handles POST /api/clock/queue-action
func (h *ClockHandlers) HandleQueueAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string          `json:"participant_id"`
		ActionType    string          `json:"action_type"`
		Data          json.RawMessage `json:"data"`
		Priority      int             `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}
	if req.ParticipantID == "" || req.ActionType == "" {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "participant_id and action_type are required")
		return
	}

	queued := h.clock.QueueAction(clock.QueuedAction{
		ParticipantID: req.ParticipantID,
		ActionType:    req.ActionType,
		Data:          req.Data,
		Priority:      req.Priority,
	})
	writeJSON(w, h.log, http.StatusAccepted, map[string]interface{}{
		"data":     queued,
		"metadata": meta(),
	})
}

// HandleRemoveAction handles DELETE /api/clock/queue-action/{id}
func (h *ClockHandlers) HandleRemoveAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.clock.RemoveAction(id) {
		writeError(w, h.log, http.StatusNotFound, "NOT_FOUND", "no queued action with that id")
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     map[string]interface{}{"removed": id},
		"metadata": meta(),
	})
}

// HandleClearActions handles DELETE /api/clock/queue-actions
func (h *ClockHandlers) HandleClearActions(w http.ResponseWriter, r *http.Request) {
	n := h.clock.ClearActions()
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     map[string]interface{}{"cleared": n},
		"metadata": meta(),
	})
}
