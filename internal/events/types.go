// Package events provides the in-process subscription bus and the typed
// event payloads published over it.
package events

import "time"

// EventType identifies a clock lifecycle event.
type EventType string

const (
	ClockSync         EventType = "clock_sync"
	ClockStarted      EventType = "clock_started"
	ClockStopped      EventType = "clock_stopped"
	ClockPaused       EventType = "clock_paused"
	ClockResumed      EventType = "clock_resumed"
	ConfigChanged     EventType = "config_changed"
	ModeChanged       EventType = "mode_changed"
	TickWarning       EventType = "tick_warning"
	ProcessingStarted EventType = "processing_started"
	MonthCompleted    EventType = "month_completed"
	ProcessingFailed  EventType = "processing_failed"
)

// Message is the envelope delivered to every subscriber mailbox.
type Message struct {
	Event     EventType   `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventData is implemented by all typed event payloads.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ClockStateData carries the full clock state. It is the payload of
// clock_sync messages and lets late joiners reconcile without replay.
type ClockStateData struct {
	CurrentMonth     int    `json:"current_month"`
	Mode             string `json:"mode"`
	Preset           string `json:"preset"`
	IntervalSeconds  int    `json:"interval_seconds"`
	WarningSeconds   int    `json:"warning_seconds"`
	SecondsUntilTick int    `json:"seconds_until_tick"`
	IsProcessing     bool   `json:"is_processing"`
	WarningActive    bool   `json:"warning_active"`
	PendingActions   int    `json:"pending_actions_count"`
}

// EventType returns the event type for ClockStateData
func (d *ClockStateData) EventType() EventType {
	return ClockSync
}

// TickWarningData is published once per cycle when the countdown first
// drops at or below the preset's warning window.
type TickWarningData struct {
	SecondsUntilTick int `json:"seconds_until_tick"`
	NextMonth        int `json:"next_month"`
	PendingActions   int `json:"pending_actions_count"`
}

// EventType returns the event type for TickWarningData
func (d *TickWarningData) EventType() EventType {
	return TickWarning
}

// ProcessingStartedData announces the beginning of a tick.
type ProcessingStartedData struct {
	NextMonth    int `json:"next_month"`
	PendingCount int `json:"pending_count"`
}

// EventType returns the event type for ProcessingStartedData
func (d *ProcessingStartedData) EventType() EventType {
	return ProcessingStarted
}

// MonthCompletedData announces a committed tick.
type MonthCompletedData struct {
	Month            int                    `json:"month"`
	NextTickIn       int                    `json:"next_tick_in"`
	ActionsProcessed int                    `json:"actions_processed"`
	EventsGenerated  int                    `json:"events_generated"`
	GovernorSummary  string                 `json:"governor_summary"`
	Result           map[string]interface{} `json:"result,omitempty"`
}

// EventType returns the event type for MonthCompletedData
func (d *MonthCompletedData) EventType() EventType {
	return MonthCompleted
}

// ProcessingFailedData announces a rolled-back tick. The month is
// unchanged and queued actions remain pending.
type ProcessingFailedData struct {
	Month int    `json:"month"`
	Error string `json:"error"`
}

// EventType returns the event type for ProcessingFailedData
func (d *ProcessingFailedData) EventType() EventType {
	return ProcessingFailed
}

// ConfigChangedData announces a preset or interval change.
type ConfigChangedData struct {
	Preset          string `json:"preset"`
	IntervalSeconds int    `json:"interval_seconds"`
	WarningSeconds  int    `json:"warning_seconds"`
}

// EventType returns the event type for ConfigChangedData
func (d *ConfigChangedData) EventType() EventType {
	return ConfigChanged
}

// ModeChangedData announces an auto/manual/paused transition.
type ModeChangedData struct {
	Mode string `json:"mode"`
}

// EventType returns the event type for ModeChangedData
func (d *ModeChangedData) EventType() EventType {
	return ModeChanged
}
