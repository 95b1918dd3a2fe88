// Package gamepad implements the virtual gamepad subsystem: a pure mapper
// that normalizes axis/trigger values and remaps buttons/axes per a
// device's layout, and a Unix-domain socket server that mimics the Linux
// joystick driver's binary wire protocol so an unprivileged client process
// can read gamepad state through a normal socket.
package gamepad

import "math"

// axisMin and axisMax bound the int16 range a normalized axis value occupies,
// matching the Linux joystick driver's js_event value field.
const (
	axisMin = -32767
	axisMax = 32767
)

// NormalizeAxis maps a float axis value in [-1, 1] to the int16 joystick
// axis range, clamping out-of-range inputs.
func NormalizeAxis(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(math.Round(v * axisMax))
}

// NormalizeTrigger maps a float trigger value in [0, 1] to the same int16
// range used for axes (triggers are reported through axis-style events),
// clamping out-of-range inputs.
func NormalizeTrigger(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	// Triggers rest at axisMin (matching a standard gamepad's rest
	// state) and travel to axisMax at full pull.
	return int16(math.Round(float64(axisMin) + v*float64(axisMax-axisMin)))
}

// Config describes one gamepad's layout: how wire button/axis indices
// remap to the indices reported over the Unix socket, and which wire
// button indices are actually an analog trigger or d-pad axis in
// disguise (AxesToButton), reported as axis events instead of button
// events on the output protocol.
type Config struct {
	Name         string
	ButtonRemap  map[int]int
	AxisRemap    map[int]int
	AxesToButton map[int][]int // output axis -> ordered wire button indices (index 0 = positive direction)
	TriggerAxes  map[int]bool  // output axis indices that use trigger normalization, not signed-axis
	NumButtons   int
	NumAxes      int
}

// Mapper applies a Config's remap tables. It is immutable once built: the
// remap tables never change for the lifetime of one connected gamepad.
type Mapper struct {
	cfg Config
}

// NewMapper builds an immutable Mapper from a Config.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// RemapButton translates a wire button index to the reported index,
// passing indices with no explicit remap through unchanged.
func (m *Mapper) RemapButton(wireIndex int) int {
	if remapped, ok := m.cfg.ButtonRemap[wireIndex]; ok {
		return remapped
	}
	return wireIndex
}

// RemapAxis translates a wire axis index to the reported index.
func (m *Mapper) RemapAxis(wireIndex int) int {
	if remapped, ok := m.cfg.AxisRemap[wireIndex]; ok {
		return remapped
	}
	return wireIndex
}

// EventKind distinguishes what an incoming wire update produces on the
// output joystick protocol.
type EventKind int

const (
	EventButton EventKind = iota
	EventAxis
)

// MappedEvent is the output-protocol event one incoming wire button/axis
// update produces.
type MappedEvent struct {
	Kind   EventKind
	Number int
	Value  int16
}

// MapButton translates an incoming wire button update (val is a press
// magnitude in [0, 1]: 1 for a digital press, a partial value for an
// analog trigger) into the event it produces on the output protocol. A
// handful of wire button indices are actually an analog trigger or
// d-pad direction reported as discrete buttons by the client; those are
// emitted as axis events here instead of button events, matching known
// controllers whose triggers/d-pad arrive this way.
func (m *Mapper) MapButton(btnNum int, val float64) MappedEvent {
	for axis, btns := range m.cfg.AxesToButton {
		sign := 1.0
		matched := false
		for i, b := range btns {
			if b == btnNum {
				matched = true
				if len(btns) > 1 && i != 0 {
					sign = -1
				}
				break
			}
		}
		if !matched {
			continue
		}
		if m.cfg.TriggerAxes[axis] {
			return MappedEvent{Kind: EventAxis, Number: axis, Value: NormalizeTrigger(val)}
		}
		return MappedEvent{Kind: EventAxis, Number: axis, Value: NormalizeAxis(val * sign)}
	}
	value := int16(0)
	if val != 0 {
		value = 1
	}
	return MappedEvent{Kind: EventButton, Number: m.RemapButton(btnNum), Value: value}
}

// MapAxis translates an incoming wire axis update into the output-axis
// event it produces.
func (m *Mapper) MapAxis(axisNum int, val float64) MappedEvent {
	return MappedEvent{Kind: EventAxis, Number: m.RemapAxis(axisNum), Value: NormalizeAxis(val)}
}

// standardXPadLayout is the fallback configuration used when a connecting
// gamepad's name doesn't match a known device, modeling a generic XInput
// pad (2 sticks, 2 triggers, d-pad, 4 face buttons, 2 shoulder buttons, 2
// stick buttons, start/select/guide). Reproduces the original
// implementation's single reachable device profile exactly, including its
// axes-to-button table for the triggers (axes 2/5) and d-pad (axes 6/7).
var standardXPadLayout = Config{
	Name:       "Selkies Controller",
	NumButtons: 17,
	NumAxes:    8,
	ButtonRemap: map[int]int{
		8: 6, 9: 7, 10: 9, 11: 10, 16: 8,
	},
	AxisRemap: map[int]int{
		2: 3, 3: 4,
	},
	AxesToButton: map[int][]int{
		2: {6},
		5: {7},
		6: {15, 14},
		7: {13, 12},
	},
	TriggerAxes: map[int]bool{2: true, 5: true},
}

// knownLayouts maps a recognized controller name to its Config. Populated
// lazily; entries are added as specific devices are confirmed rather than
// hard-coding speculative ones that can never be exercised.
var knownLayouts = map[string]Config{}

// DetectConfig looks up a Config by device name, falling back to the
// standard XPad-style layout for anything unrecognized rather than
// hard-coding per-device branches that can't be reached without the
// physical hardware.
func DetectConfig(name string) (Config, bool) {
	if cfg, ok := knownLayouts[name]; ok {
		return cfg, true
	}
	return standardXPadLayout, false
}
