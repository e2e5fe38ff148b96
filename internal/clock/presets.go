package clock

import "fmt"

// Mode is the clock operation mode.
type Mode string

const (
	ModeAuto   Mode = "auto"   // automatic ticking on interval
	ModeManual Mode = "manual" // tick only on force_tick
	ModePaused Mode = "paused" // countdown frozen
)

// Interval bounds for custom intervals.
const (
	MinIntervalSeconds = 10
	MaxIntervalSeconds = 86400
)

// Preset bundles a tick interval with its pre-tick warning window.
type Preset struct {
	Name            string `json:"name"`
	IntervalSeconds int    `json:"interval_seconds"`
	WarningSeconds  int    `json:"warning_seconds"`
	Description     string `json:"description"`
}

// DefaultPreset is applied when no preset is configured.
const DefaultPreset = "demo"

var presets = map[string]Preset{
	"test":      {Name: "test", IntervalSeconds: 30, WarningSeconds: 10, Description: "Fast ticks for testing (30s)"},
	"demo_fast": {Name: "demo_fast", IntervalSeconds: 120, WarningSeconds: 30, Description: "Fast demo mode (2 min)"},
	"demo":      {Name: "demo", IntervalSeconds: 300, WarningSeconds: 60, Description: "Standard demo mode (5 min)"},
	"casual":    {Name: "casual", IntervalSeconds: 900, WarningSeconds: 120, Description: "Casual play (15 min)"},
	"slow":      {Name: "slow", IntervalSeconds: 1800, WarningSeconds: 300, Description: "Relaxed pace (30 min)"},
	"realtime":  {Name: "realtime", IntervalSeconds: 3600, WarningSeconds: 600, Description: "Real-time simulation (1 hour)"},
	"daily":     {Name: "daily", IntervalSeconds: 86400, WarningSeconds: 3600, Description: "Daily ticks (24 hours)"},
}

// LookupPreset resolves a preset by name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown clock preset %q", name)
	}
	return p, nil
}

// Presets returns all presets in a stable order.
func Presets() []Preset {
	names := []string{"test", "demo_fast", "demo", "casual", "slow", "realtime", "daily"}
	out := make([]Preset, 0, len(names))
	for _, n := range names {
		out = append(out, presets[n])
	}
	return out
}
