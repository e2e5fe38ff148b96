package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/metrics"
	"github.com/nedlands/propnet/internal/narrator"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/pipeline"
	"github.com/nedlands/propnet/internal/store"
)

// NetworkHandlers serves committed network state: properties,
// participants, snapshot history, events, and the economy view. All
// reads go against the last committed month.
type NetworkHandlers struct {
	store       *store.Store
	clock       *clock.Clock
	pipeline    *pipeline.Pipeline
	metrics     *metrics.Service
	npcs        *npc.Engine
	narrator    *narrator.Narrator
	calibration *market.Calibration
	log         zerolog.Logger
}

// NewNetworkHandlers creates network handlers.
func NewNetworkHandlers(
	st *store.Store,
	c *clock.Clock,
	p *pipeline.Pipeline,
	m *metrics.Service,
	npcs *npc.Engine,
	narr *narrator.Narrator,
	cal *market.Calibration,
	log zerolog.Logger,
) *NetworkHandlers {
	return &NetworkHandlers{
		store:       st,
		clock:       c,
		pipeline:    p,
		metrics:     m,
		npcs:        npcs,
		narrator:    narr,
		calibration: cal,
		log:         log.With().Str("handler", "network").Logger(),
	}
}

// HandleState handles GET /api/network/state
func (h *NetworkHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.store.Snapshots.GetLatest(h.store.DB())
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}

	state := h.pipeline.MarketState()
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"current_month": h.clock.CurrentMonth(),
			"clock":         h.clock.GetState(),
			"market": map[string]interface{}{
				"state":     state,
				"condition": state.Condition(),
			},
			"latest_snapshot": snapshot, // nil before the first tick
		},
		"metadata": meta(),
	})
}

// HandleProperties handles GET /api/network/properties
func (h *NetworkHandlers) HandleProperties(w http.ResponseWriter, r *http.Request) {
	status := domain.PropertyStatus(r.URL.Query().Get("status"))
	properties, err := h.store.Properties.List(h.store.DB(), status)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"properties": properties,
			"count":      len(properties),
		},
		"metadata": meta(),
	})
}

// HandleProperty handles GET /api/network/properties/{id}
func (h *NetworkHandlers) HandleProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	property, err := h.store.Properties.GetByID(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	holders, err := h.store.Holdings.ListByProperty(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"property": property,
			"holders":  holders,
		},
		"metadata": meta(),
	})
}

// HandleParticipants handles GET /api/network/participants
func (h *NetworkHandlers) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	kind := domain.ParticipantKind(r.URL.Query().Get("kind"))
	role := domain.Role(r.URL.Query().Get("role"))
	participants, err := h.store.Participants.List(h.store.DB(), kind, role)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"participants": participants,
			"count":        len(participants),
		},
		"metadata": meta(),
	})
}

// HandleParticipant handles GET /api/network/participants/{id}
func (h *NetworkHandlers) HandleParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	participant, err := h.store.Participants.GetByID(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	holdings, err := h.store.Holdings.ListByParticipant(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"participant": participant,
			"holdings":    holdings,
		},
		"metadata": meta(),
	})
}

// HandleSnapshots handles GET /api/network/history/snapshots?months=N
func (h *NetworkHandlers) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 12)
	snapshots, err := h.store.Snapshots.List(h.store.DB(), months)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": snapshots,
			"count":     len(snapshots),
		},
		"metadata": meta(),
	})
}

// HandleEvents handles GET /api/network/history/events?month&type&limit
func (h *NetworkHandlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		EventType: r.URL.Query().Get("type"),
		Limit:     queryInt(r, "limit", 50),
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "month must be an integer")
			return
		}
		filter.Month = &month
	}

	events, err := h.store.Events.List(h.store.DB(), filter)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"events": events,
			"count":  len(events),
		},
		"metadata": meta(),
	})
}

// HandleMetrics handles GET /api/network/history/metrics?months=N
func (h *NetworkHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 12)
	report, err := h.metrics.Trailing(months)
	if err != nil {
		writeError(w, h.log, http.StatusConflict, "INSUFFICIENT_HISTORY", err.Error())
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     report,
		"metadata": meta(),
	})
}

// HandleFeed handles GET /api/network/feed?limit&category
func (h *NetworkHandlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		EventType: r.URL.Query().Get("category"),
		Limit:     queryInt(r, "limit", 20),
	}
	events, err := h.store.Events.List(h.store.DB(), filter)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"feed":  events,
			"count": len(events),
		},
		"metadata": meta(),
	})
}

// HandleNews handles GET /api/network/news/{month}
func (h *NetworkHandlers) HandleNews(w http.ResponseWriter, r *http.Request) {
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "month must be a positive integer")
		return
	}

	snapshot, err := h.store.Snapshots.GetByMonth(h.store.DB(), month)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	events, err := h.store.Events.List(h.store.DB(), store.EventFilter{Month: &month, Limit: 100})
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}

	summary := snapshot.GovernorSummary
	if summary == "" {
		summary = narrator.Fallback(month, len(events))
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"month":    month,
			"summary":  summary,
			"events":   events,
			"snapshot": snapshot,
		},
		"metadata": meta(),
	})
}

// HandleEconomy handles GET /api/network/economy
func (h *NetworkHandlers) HandleEconomy(w http.ResponseWriter, r *http.Request) {
	state := h.pipeline.MarketState()
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"month":     h.clock.CurrentMonth(),
			"state":     state,
			"condition": state.Condition(),
			"reference": map[string]interface{}{
				"target_yield_house":       h.calibration.TargetYieldHouse,
				"target_yield_unit":        h.calibration.TargetYieldUnit,
				"minimum_acceptable_yield": h.calibration.MinimumAcceptableYield,
				"median_house_price":       h.calibration.MedianHousePrice,
				"median_weekly_rent":       h.calibration.MedianWeeklyRent,
				"cash_rate_pct":            h.calibration.CashRatePct,
				"wa_discount_to_national":  h.calibration.WADiscountToNational,
			},
		},
		"metadata": meta(),
	})
}

// HandleGenerateEvents handles POST /api/network/events/generate.
// Ad-hoc generation for demos: events are persisted against the
// current month but market impacts are real, so use with intent.
func (h *NetworkHandlers) HandleGenerateEvents(w http.ResponseWriter, r *http.Request) {
	month := h.clock.CurrentMonth()
	events, err := h.pipeline.GenerateAdHocEvents(month)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"month":  month,
			"events": events,
			"count":  len(events),
		},
		"metadata": meta(),
	})
}

// HandleGovernorChat handles POST /api/network/governor/chat
func (h *NetworkHandlers) HandleGovernorChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "question is required")
		return
	}

	state := h.pipeline.MarketState()
	answer, err := h.narrator.GovernorChat(r.Context(), req.Question, h.clock.CurrentMonth(), &state)
	if err != nil {
		// Unconfigured or failing model degrades to a canned response.
		h.log.Warn().Err(err).Msg("Governor chat unavailable")
		answer = "The governor is unavailable right now. Watch the monthly summaries for network commentary."
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"question": req.Question,
			"answer":   answer,
		},
		"metadata": meta(),
	})
}

// HandleNPCs handles GET /api/network/npcs
func (h *NetworkHandlers) HandleNPCs(w http.ResponseWriter, r *http.Request) {
	participants, err := h.store.Participants.List(h.store.DB(), domain.KindNPC, "")
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"npcs":  participants,
			"count": len(participants),
		},
		"metadata": meta(),
	})
}

// HandleNPC handles GET /api/network/npcs/{id}
func (h *NetworkHandlers) HandleNPC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	participant, err := h.store.Participants.GetByID(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	if participant.Kind != domain.KindNPC {
		writeError(w, h.log, http.StatusNotFound, "NOT_FOUND", "participant is not an NPC")
		return
	}
	holdings, err := h.store.Holdings.ListByParticipant(h.store.DB(), id)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	recent, err := h.store.Actions.ListByParticipant(h.store.DB(), id, 20)
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"npc":            participant,
			"holdings":       holdings,
			"recent_actions": recent,
		},
		"metadata": meta(),
	})
}

// HandleInitializeNPCs handles POST /api/network/npcs/initialize
func (h *NetworkHandlers) HandleInitializeNPCs(w http.ResponseWriter, r *http.Request) {
	created, err := h.npcs.EnsureParticipants(h.store.DB())
	if err != nil {
		writeStoreError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"created": created,
			"total":   len(npc.Profiles),
		},
		"metadata": meta(),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
