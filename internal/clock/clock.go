// Package clock implements the globally synchronized network clock.
// Every participant sees the same countdown; all intents queue for the
// same tick, and the tick loop is the only caller of the pipeline.
package clock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/events"
)

// QueuedAction is an intent held in the in-memory queue until the next
// tick drains it.
type QueuedAction struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	ActionType    string          `json:"action_type"`
	Data          json.RawMessage `json:"data"`
	Priority      int             `json:"priority"`
	QueuedAt      time.Time       `json:"queued_at"`
}

// TickResult is what the pipeline reports back for a committed month.
type TickResult struct {
	ActionsProcessed int
	EventsGenerated  int
	GovernorSummary  string
	Extra            map[string]interface{}
}

// Ticker runs one month of simulation. Implementations must be
// atomic: on error no state may have changed.
type Ticker interface {
	Tick(ctx context.Context, nextMonth int, queued []QueuedAction) (*TickResult, error)
}

// State is a point-in-time view of the clock.
type State struct {
	CurrentMonth     int       `json:"current_month"`
	Mode             Mode      `json:"mode"`
	Preset           string    `json:"preset"`
	IntervalSeconds  int       `json:"interval_seconds"`
	WarningSeconds   int       `json:"warning_seconds"`
	LastTick         time.Time `json:"last_tick"`
	NextTick         time.Time `json:"next_tick"`
	IsProcessing     bool      `json:"is_processing"`
	SecondsUntilTick int       `json:"seconds_until_tick"`
	WarningActive    bool      `json:"warning_active"`
	PendingActions   int       `json:"pending_actions_count"`
}

// Clock owns the tick loop, the countdown, and the in-memory action
// queue. All mutation goes through its mutex; the loop itself runs in
// a single goroutine started by Start.
type Clock struct {
	mu sync.Mutex

	currentMonth int
	mode         Mode
	preset       string
	interval     int
	warning      int
	lastTick     time.Time
	isProcessing bool

	queue []QueuedAction

	ticker Ticker
	bus    *events.Bus

	cancel context.CancelFunc
	done   chan struct{}

	log zerolog.Logger
}

// New creates a clock on the given preset, starting at startMonth.
func New(presetName string, startMonth int, ticker Ticker, bus *events.Bus, log zerolog.Logger) (*Clock, error) {
	p, err := LookupPreset(presetName)
	if err != nil {
		return nil, err
	}
	if startMonth < 1 {
		startMonth = 1
	}
	return &Clock{
		currentMonth: startMonth,
		mode:         ModeAuto,
		preset:       p.Name,
		interval:     p.IntervalSeconds,
		warning:      p.WarningSeconds,
		lastTick:     time.Now().UTC(),
		ticker:       ticker,
		bus:          bus,
		log:          log.With().Str("component", "clock").Logger(),
	}, nil
}

// GetState returns the current clock state.
func (c *Clock) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Clock) stateLocked() State {
	next := c.lastTick.Add(time.Duration(c.interval) * time.Second)
	remaining := int(time.Until(next).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return State{
		CurrentMonth:     c.currentMonth,
		Mode:             c.mode,
		Preset:           c.preset,
		IntervalSeconds:  c.interval,
		WarningSeconds:   c.warning,
		LastTick:         c.lastTick,
		NextTick:         next,
		IsProcessing:     c.isProcessing,
		SecondsUntilTick: remaining,
		WarningActive:    remaining <= c.warning,
		PendingActions:   len(c.queue),
	}
}

// CurrentMonth returns the committed month.
func (c *Clock) CurrentMonth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMonth
}

// SetPreset applies a timing preset and restarts the countdown.
func (c *Clock) SetPreset(name string) error {
	p, err := LookupPreset(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.preset = p.Name
	c.interval = p.IntervalSeconds
	c.warning = p.WarningSeconds
	c.lastTick = time.Now().UTC()
	c.mu.Unlock()

	c.bus.Publish(events.ConfigChanged, &events.ConfigChangedData{
		Preset:          p.Name,
		IntervalSeconds: p.IntervalSeconds,
		WarningSeconds:  p.WarningSeconds,
	})
	c.log.Info().Str("preset", name).Msg("Clock preset changed")
	return nil
}

// SetInterval applies a custom interval, clamped to the allowed bounds.
// A custom interval detaches the clock from any named preset; it
// reports the default preset name with the custom timing.
func (c *Clock) SetInterval(seconds int) {
	if seconds < MinIntervalSeconds {
		seconds = MinIntervalSeconds
	}
	if seconds > MaxIntervalSeconds {
		seconds = MaxIntervalSeconds
	}

	c.mu.Lock()
	c.interval = seconds
	c.preset = DefaultPreset
	c.lastTick = time.Now().UTC()
	warning := c.warning
	c.mu.Unlock()

	c.bus.Publish(events.ConfigChanged, &events.ConfigChangedData{
		Preset:          DefaultPreset,
		IntervalSeconds: seconds,
		WarningSeconds:  warning,
	})
	c.log.Info().Int("seconds", seconds).Msg("Clock interval changed")
}

// SetMode switches between auto, manual, and paused. Entering auto
// restarts the countdown so the first tick is a full interval away.
func (c *Clock) SetMode(mode Mode) {
	c.mu.Lock()
	old := c.mode
	c.mode = mode
	if mode == ModeAuto && old != ModeAuto {
		c.lastTick = time.Now().UTC()
	}
	c.mu.Unlock()

	c.bus.Publish(events.ModeChanged, &events.ModeChangedData{Mode: string(mode)})
	c.log.Info().Str("mode", string(mode)).Msg("Clock mode changed")
}

// Start launches the tick loop. Idempotent; a running clock is left
// alone.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mode = ModeAuto
	c.lastTick = time.Now().UTC()
	month := c.currentMonth
	interval := c.interval
	c.mu.Unlock()

	go c.run(loopCtx)

	c.bus.Publish(events.ClockStarted, map[string]interface{}{
		"month":            month,
		"interval_seconds": interval,
	})
	c.log.Info().Int("interval", interval).Str("preset", c.preset).Msg("Network clock started")
}

// Stop cancels the tick loop and waits for it to exit. A tick in
// flight completes first.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mode = ModePaused
	month := c.currentMonth
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.bus.Publish(events.ClockStopped, map[string]interface{}{"month": month})
	c.log.Info().Msg("Network clock stopped")
}

// Pause freezes the countdown without stopping the loop.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.mode = ModePaused
	month := c.currentMonth
	c.mu.Unlock()

	c.bus.Publish(events.ClockPaused, map[string]interface{}{"month": month})
	c.log.Info().Msg("Network clock paused")
}

// Resume restarts a paused countdown from a full interval.
func (c *Clock) Resume() {
	c.mu.Lock()
	c.mode = ModeAuto
	c.lastTick = time.Now().UTC()
	month := c.currentMonth
	c.mu.Unlock()

	c.bus.Publish(events.ClockResumed, map[string]interface{}{"month": month})
	c.log.Info().Msg("Network clock resumed")
}

// QueueAction queues an intent for the next tick.
func (c *Clock) QueueAction(a QueuedAction) QueuedAction {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.QueuedAt.IsZero() {
		a.QueuedAt = time.Now().UTC()
	}
	if a.Priority == 0 {
		a.Priority = 5
	}

	c.mu.Lock()
	c.queue = append(c.queue, a)
	c.mu.Unlock()

	c.log.Info().
		Str("action_id", a.ID).
		Str("action_type", a.ActionType).
		Str("participant_id", a.ParticipantID).
		Msg("Action queued")
	return a
}

// RemoveAction withdraws a queued intent that has not been processed.
func (c *Clock) RemoveAction(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.queue {
		if a.ID == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.log.Info().Str("action_id", id).Msg("Action removed")
			return true
		}
	}
	return false
}

// ClearActions empties the in-memory queue.
func (c *Clock) ClearActions() int {
	c.mu.Lock()
	n := len(c.queue)
	c.queue = nil
	c.mu.Unlock()
	c.log.Info().Int("count", n).Msg("Actions cleared")
	return n
}

// PendingActions returns a copy of the queue.
func (c *Clock) PendingActions() []QueuedAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]QueuedAction, len(c.queue))
	copy(out, c.queue)
	return out
}

// Reset rewinds the clock to the given month with an empty queue and
// a fresh countdown. Intended for test and demo resets; committed
// history in the store is left alone.
func (c *Clock) Reset(month int) {
	if month < 1 {
		month = 1
	}

	c.mu.Lock()
	c.currentMonth = month
	c.queue = nil
	c.lastTick = time.Now().UTC()
	preset := c.preset
	interval := c.interval
	warning := c.warning
	c.mu.Unlock()

	c.bus.Publish(events.ConfigChanged, &events.ConfigChangedData{
		Preset:          preset,
		IntervalSeconds: interval,
		WarningSeconds:  warning,
	})
	c.log.Info().Int("month", month).Msg("Clock reset")
}

// ForceTick runs a tick immediately, bypassing the countdown. The
// is_processing guard still applies.
func (c *Clock) ForceTick(ctx context.Context) {
	c.log.Info().Msg("Force tick requested")
	c.processTick(ctx)
}

// run is the tick loop. It wakes on a short cancellable sleep, sends
// the one warning per cycle, fires the tick at zero, and heartbeats
// clock_sync so late joiners can reconcile.
func (c *Clock) run(ctx context.Context) {
	defer close(c.done)
	warningSent := false

	for {
		c.mu.Lock()
		mode := c.mode
		state := c.stateLocked()
		c.mu.Unlock()

		if mode == ModeAuto {
			if state.SecondsUntilTick <= c.warning && !warningSent && !state.IsProcessing {
				c.bus.Publish(events.TickWarning, &events.TickWarningData{
					SecondsUntilTick: state.SecondsUntilTick,
					NextMonth:        state.CurrentMonth + 1,
					PendingActions:   state.PendingActions,
				})
				warningSent = true
			}

			if state.SecondsUntilTick <= 0 && !state.IsProcessing {
				c.processTick(ctx)
				warningSent = false
			}
		}

		sleep := time.Duration(state.SecondsUntilTick/10) * time.Second
		if sleep < time.Second {
			sleep = time.Second
		}
		if sleep > 5*time.Second {
			sleep = 5 * time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		c.publishSync()
	}
}

func (c *Clock) publishSync() {
	s := c.GetState()
	c.bus.Publish(events.ClockSync, &events.ClockStateData{
		CurrentMonth:     s.CurrentMonth,
		Mode:             string(s.Mode),
		Preset:           s.Preset,
		IntervalSeconds:  s.IntervalSeconds,
		WarningSeconds:   s.WarningSeconds,
		SecondsUntilTick: s.SecondsUntilTick,
		IsProcessing:     s.IsProcessing,
		WarningActive:    s.WarningActive,
		PendingActions:   s.PendingActions,
	})
}

// processTick runs one month through the pipeline. A tick already in
// flight makes this a logged no-op.
func (c *Clock) processTick(ctx context.Context) {
	c.mu.Lock()
	if c.isProcessing {
		c.mu.Unlock()
		c.log.Warn().Msg("Tick already processing")
		return
	}
	c.isProcessing = true
	nextMonth := c.currentMonth + 1
	queued := make([]QueuedAction, len(c.queue))
	copy(queued, c.queue)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isProcessing = false
		c.mu.Unlock()
	}()

	c.bus.Publish(events.ProcessingStarted, &events.ProcessingStartedData{
		NextMonth:    nextMonth,
		PendingCount: len(queued),
	})
	c.log.Info().Int("month", nextMonth).Int("pending", len(queued)).Msg("Tick processing started")

	result, err := c.ticker.Tick(ctx, nextMonth, queued)
	if err != nil {
		c.log.Error().Err(err).Int("month", nextMonth).Msg("Tick processing failed")
		c.bus.Publish(events.ProcessingFailed, &events.ProcessingFailedData{
			Month: nextMonth,
			Error: err.Error(),
		})
		return
	}

	drained := make(map[string]struct{}, len(queued))
	for _, qa := range queued {
		drained[qa.ID] = struct{}{}
	}

	c.mu.Lock()
	c.currentMonth = nextMonth
	c.lastTick = time.Now().UTC()
	// Drop only what this tick drained; actions queued while the tick
	// ran stay behind for the next month.
	remaining := c.queue[:0]
	for _, qa := range c.queue {
		if _, ok := drained[qa.ID]; !ok {
			remaining = append(remaining, qa)
		}
	}
	c.queue = remaining
	next := c.stateLocked().SecondsUntilTick
	c.mu.Unlock()

	c.bus.Publish(events.MonthCompleted, &events.MonthCompletedData{
		Month:            nextMonth,
		NextTickIn:       next,
		ActionsProcessed: result.ActionsProcessed,
		EventsGenerated:  result.EventsGenerated,
		GovernorSummary:  result.GovernorSummary,
		Result:           result.Extra,
	})
	c.log.Info().Int("month", nextMonth).Msg("Tick processing completed")
}
