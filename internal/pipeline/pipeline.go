// Package pipeline runs one simulated month end to end: drain queued
// actions, advance agents, advance the market, generate events, derive
// economics, summarize, persist. Every store write happens inside a
// single transaction, so a failed month leaves no trace and the clock
// simply tries again.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"database/sql"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/eventgen"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/narrator"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/store"
)

var monthlyRentWeeks = decimal.NewFromFloat(4.33)
var dividendPayoutRatio = decimal.NewFromFloat(0.80)

// fullState is the msgpack blob stored with each snapshot. It captures
// enough to rebuild dashboards for a historic month without replay.
type fullState struct {
	Month      int                 `msgpack:"month"`
	Market     *market.State       `msgpack:"market"`
	Condition  string              `msgpack:"condition"`
	Properties []propertySnapshot  `msgpack:"properties"`
}

type propertySnapshot struct {
	ID         string `msgpack:"id"`
	Address    string `msgpack:"address"`
	Status     string `msgpack:"status"`
	TokenPrice string `msgpack:"token_price"`
	Valuation  string `msgpack:"valuation"`
	Ownership  string `msgpack:"ownership"`
}

// Pipeline implements clock.Ticker. The market state it owns is only
// mutated here; a failed tick restores the pre-tick state so market
// indicators stay consistent with the committed snapshot history.
type Pipeline struct {
	store     *store.Store
	model     *market.Model
	state     *market.State
	generator *eventgen.Generator
	npcs      *npc.Engine
	processor *actions.Processor
	narrator  *narrator.Narrator

	// mu serializes ticks with ad-hoc generation and state reads; the
	// rng and market state are shared between them.
	mu  sync.Mutex
	rng *rand.Rand

	log zerolog.Logger
}

// New creates a pipeline. seed fixes the PRNG stream; zero seeds from
// the wall clock.
func New(
	st *store.Store,
	model *market.Model,
	state *market.State,
	generator *eventgen.Generator,
	npcs *npc.Engine,
	processor *actions.Processor,
	narr *narrator.Narrator,
	seed int64,
	log zerolog.Logger,
) *Pipeline {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Pipeline{
		store:     st,
		model:     model,
		state:     state,
		generator: generator,
		npcs:      npcs,
		processor: processor,
		narrator:  narr,
		rng:       rand.New(rand.NewSource(seed)),
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// MarketState returns the current market state for read-only use.
func (p *Pipeline) MarketState() market.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.state
}

// GenerateAdHocEvents draws an extra batch of events for the given
// month outside the tick. Events are persisted and their market
// impacts applied, so the next tick starts from the shifted state.
func (p *Pipeline) GenerateAdHocEvents(month int) ([]*domain.NetworkEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	working := *p.state
	var generated []*domain.NetworkEvent

	err := p.store.WithTx(func(tx *sql.Tx) error {
		properties, err := p.store.Properties.List(tx, "")
		if err != nil {
			return err
		}
		generated = p.generator.GenerateMonth(&working, month, properties, p.rng)
		for _, e := range generated {
			if err := p.store.Events.Create(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	*p.state = working
	p.log.Info().Int("month", month).Int("events", len(generated)).Msg("Ad-hoc events generated")
	return generated, nil
}

// Tick processes one month. All writes run in a single transaction;
// on error nothing is committed and the market state is untouched.
func (p *Pipeline) Tick(ctx context.Context, nextMonth int, queued []clock.QueuedAction) (*clock.TickResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()

	// Work on a copy so a rolled-back transaction also rolls back the
	// in-memory indicators.
	working := *p.state

	var (
		actionsProcessed int
		tokensTraded     = decimal.Zero
		generatedEvents  []*domain.NetworkEvent
		summary          string
		aggregates       tickAggregates
	)

	err := p.store.WithTx(func(tx *sql.Tx) error {
		// Persist the clock's in-memory queue so ordering merges with
		// actions queued directly against the store.
		for _, qa := range queued {
			action := &domain.PendingAction{
				ID:             qa.ID,
				ParticipantID:  qa.ParticipantID,
				ActionType:     qa.ActionType,
				Data:           qa.Data,
				Priority:       qa.Priority,
				QueuedAt:       qa.QueuedAt,
				QueuedForMonth: nextMonth,
			}
			if err := p.store.Actions.Queue(tx, action); err != nil {
				if errors.Is(err, store.ErrDuplicateAction) {
					continue
				}
				return fmt.Errorf("failed to persist queued action: %w", err)
			}
		}

		// Drain the store queue in (priority DESC, queued_at ASC)
		// order. First feasible action wins contested resources.
		pending, err := p.store.Actions.ListPending(tx, nextMonth)
		if err != nil {
			return err
		}
		for _, a := range pending {
			result, already := p.processor.ProcessQueued(tx, a, nextMonth)
			if already {
				continue
			}
			if result.Success {
				actionsProcessed++
				tokensTraded = tokensTraded.Add(tradedTokens(result))
			}
		}

		// Agents act against the post-drain state.
		properties, err := p.store.Properties.List(tx, "")
		if err != nil {
			return err
		}
		decisions, err := p.npcs.ProcessTick(tx, nextMonth, properties, &working, p.rng)
		if err != nil {
			return err
		}
		for _, d := range decisions {
			result := p.processor.Process(tx, d.ParticipantID, d.ActionType, d.Data, nextMonth)
			if result.Success {
				actionsProcessed++
				tokensTraded = tokensTraded.Add(tradedTokens(result))
			}
		}

		// Advance the cycle and draw events; impacts mutate the
		// working market state.
		generatedEvents = p.generator.GenerateMonth(&working, nextMonth, properties, p.rng)

		// Valuation pass: a single appreciation draw for the month,
		// applied uniformly.
		rate := p.model.AppreciationRate(&working, p.rng)
		factor := decimal.NewFromFloat(1 + rate)
		properties, err = p.store.Properties.List(tx, "")
		if err != nil {
			return err
		}
		for _, prop := range properties {
			prop.CurrentValuation = prop.CurrentValuation.Mul(factor)
			prop.LastValuationMonth = nextMonth
			if err := p.store.Properties.Save(tx, prop); err != nil {
				return err
			}
		}

		aggregates = p.computeAggregates(properties)

		summary = p.narrator.MonthlySummary(ctx, nextMonth, generatedEvents, &working)

		participantCount, err := p.store.Participants.Count(tx)
		if err != nil {
			return err
		}

		blob, err := p.encodeFullState(nextMonth, &working, properties)
		if err != nil {
			return err
		}

		snapshot := &domain.NetworkSnapshot{
			NetworkMonth:      nextMonth,
			TotalProperties:   len(properties),
			TotalParticipants: participantCount,
			TotalValuation:    aggregates.totalValuation,
			TotalTokensIssued: aggregates.totalTokens,
			AvgTokenPrice:     aggregates.avgTokenPrice,
			AvgYield:          aggregates.avgYield,
			ActionsProcessed:  actionsProcessed,
			TokensTraded:      tokensTraded,
			DividendsPaid:     aggregates.dividendsPaid,
			RentCollected:     aggregates.rentCollected,
			FullState:         blob,
			GovernorSummary:   summary,
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
		}
		if err := p.store.Snapshots.Create(tx, snapshot); err != nil {
			return err
		}

		for _, e := range generatedEvents {
			if err := p.store.Events.Create(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.log.Error().Err(err).Int("month", nextMonth).Msg("Tick rolled back")
		return nil, err
	}

	// Commit the working market state only after the transaction held.
	*p.state = working

	p.log.Info().
		Int("month", nextMonth).
		Int("actions_processed", actionsProcessed).
		Int("events_generated", len(generatedEvents)).
		Dur("elapsed", time.Since(start)).
		Msg("Month committed")

	return &clock.TickResult{
		ActionsProcessed: actionsProcessed,
		EventsGenerated:  len(generatedEvents),
		GovernorSummary:  summary,
		Extra: map[string]interface{}{
			"total_valuation": aggregates.totalValuation.InexactFloat64(),
			"avg_token_price": aggregates.avgTokenPrice.InexactFloat64(),
			"avg_yield":       aggregates.avgYield.InexactFloat64(),
			"rent_collected":  aggregates.rentCollected.InexactFloat64(),
			"dividends_paid":  aggregates.dividendsPaid.InexactFloat64(),
			"tokens_traded":   tokensTraded.InexactFloat64(),
			"condition":       string(working.Condition()),
			"cycle_phase":     string(working.CyclePhase),
		},
	}, nil
}

// tradedTokens extracts the token volume of a successful trade result.
// Non-trade actions contribute nothing.
func tradedTokens(result actions.Result) decimal.Decimal {
	if result.ActionType != "buy_tokens" && result.ActionType != "sell_tokens" {
		return decimal.Zero
	}
	if v, ok := result.Data["tokens"].(float64); ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

type tickAggregates struct {
	totalValuation decimal.Decimal
	totalTokens    decimal.Decimal
	avgTokenPrice  decimal.Decimal
	avgYield       decimal.Decimal
	rentCollected  decimal.Decimal
	dividendsPaid  decimal.Decimal
}

// computeAggregates derives the pre-computed monthly economics: total
// valuation, token averages, and the rent and dividend flow of every
// tenanted property.
func (p *Pipeline) computeAggregates(properties []*domain.PropertyState) tickAggregates {
	agg := tickAggregates{
		totalValuation: decimal.Zero,
		totalTokens:    decimal.Zero,
		avgTokenPrice:  decimal.NewFromInt(1),
		avgYield:       decimal.NewFromFloat(4.2),
		rentCollected:  decimal.Zero,
		dividendsPaid:  decimal.Zero,
	}
	if len(properties) == 0 {
		return agg
	}

	priceSum := decimal.Zero
	yieldSum := decimal.Zero
	yieldCount := 0

	for _, prop := range properties {
		agg.totalValuation = agg.totalValuation.Add(prop.CurrentValuation)
		agg.totalTokens = agg.totalTokens.Add(prop.TotalTokens)
		priceSum = priceSum.Add(prop.TokenPrice)

		if !prop.CurrentValuation.IsZero() {
			annualRent := prop.WeeklyRent.Mul(decimal.NewFromInt(52))
			yieldSum = yieldSum.Add(annualRent.Div(prop.CurrentValuation).Mul(decimal.NewFromInt(100)))
			yieldCount++
		}

		// Rent flows only from properties with an actual tenant on the
		// lease; a tenanted status without one collects nothing.
		if prop.Status == domain.PropertyTenanted && prop.TenantID != nil {
			monthlyRent := prop.WeeklyRent.Mul(monthlyRentWeeks)
			agg.rentCollected = agg.rentCollected.Add(monthlyRent)
			agg.dividendsPaid = agg.dividendsPaid.Add(monthlyRent.Mul(dividendPayoutRatio))
		}
	}

	agg.avgTokenPrice = priceSum.Div(decimal.NewFromInt(int64(len(properties))))
	if yieldCount > 0 {
		agg.avgYield = yieldSum.Div(decimal.NewFromInt(int64(yieldCount)))
	}
	return agg
}

func (p *Pipeline) encodeFullState(month int, s *market.State, properties []*domain.PropertyState) ([]byte, error) {
	fs := fullState{
		Month:     month,
		Market:    s,
		Condition: string(s.Condition()),
	}
	for _, prop := range properties {
		fs.Properties = append(fs.Properties, propertySnapshot{
			ID:         prop.ID,
			Address:    prop.Address,
			Status:     string(prop.Status),
			TokenPrice: prop.TokenPrice.String(),
			Valuation:  prop.CurrentValuation.String(),
			Ownership:  prop.NetworkOwnership.String(),
		})
	}
	blob, err := msgpack.Marshal(&fs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode full state: %w", err)
	}
	return blob, nil
}

// DecodeFullState unpacks a snapshot's full_state blob.
func DecodeFullState(blob []byte) (map[string]interface{}, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var out map[string]interface{}
	if err := msgpack.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("failed to decode full state: %w", err)
	}
	return out, nil
}
