// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"

	"audiomap/internal/platform"
)

// Direction is the capture/playback capability of a device.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionInput
	DirectionOutput
	DirectionInputOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	case DirectionInputOutput:
		return "input_output"
	default:
		return "unknown"
	}
}

// ParseDirection converts "input", "output" or "input_output" (case-insensitive)
// to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in", "capture":
		return DirectionInput, nil
	case "output", "out", "playback":
		return DirectionOutput, nil
	case "input_output", "duplex", "inout":
		return DirectionInputOutput, nil
	}
	return DirectionUnknown, fmt.Errorf("invalid direction: %q", s)
}

// DirectionFromChannels classifies a device the way PortAudio reports it.
func DirectionFromChannels(inputChannels, outputChannels int) Direction {
	switch {
	case inputChannels > 0 && outputChannels > 0:
		return DirectionInputOutput
	case inputChannels > 0:
		return DirectionInput
	case outputChannels > 0:
		return DirectionOutput
	}
	return DirectionUnknown
}

// Valid reports whether d is one of the three known directions.
func (d Direction) Valid() bool {
	return d >= DirectionInput && d <= DirectionInputOutput
}

// CanInput reports whether a device with direction d can capture.
func (d Direction) CanInput() bool {
	return d == DirectionInput || d == DirectionInputOutput
}

// CanOutput reports whether a device with direction d can play back.
func (d Direction) CanOutput() bool {
	return d == DirectionOutput || d == DirectionInputOutput
}

// Matches reports whether a device with direction d belongs in a listing
// filtered by want. DirectionUnknown as a filter matches everything.
func (d Direction) Matches(want Direction) bool {
	switch want {
	case DirectionUnknown:
		return true
	case DirectionInput:
		return d.CanInput()
	case DirectionOutput:
		return d.CanOutput()
	}
	return d == want
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Device is one normalized entry of a directory snapshot. Devices are values:
// a refresh produces new ones and never mutates old ones.
type Device struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Direction Direction         `json:"direction" yaml:"direction"`
	Platform  platform.Platform `json:"platform" yaml:"platform"`
	IsDefault bool              `json:"is_default" yaml:"is_default"`
	Backend   string            `json:"backend,omitempty" yaml:"backend,omitempty"`

	// ref is the adapter's handle for re-resolution. Only the adapter that
	// produced the device knows its type.
	ref any
}

// Map returns the record as a plain mapping with the keys name, id,
// platform, direction and is_default.
func (d Device) Map() map[string]any {
	return map[string]any{
		"name":       d.Name,
		"id":         d.ID,
		"platform":   d.Platform.String(),
		"direction":  d.Direction.String(),
		"is_default": d.IsDefault,
	}
}

func (d Device) String() string {
	def := ""
	if d.IsDefault {
		def = ", default"
	}
	return fmt.Sprintf("%s (%s%s) [%s]", d.Name, d.Direction, def, d.ID)
}

// NativeRef returns the adapter handle carried by d. It lives in an internal
// package so it never leaves this module.
func NativeRef(d Device) any {
	return d.ref
}

// Counts summarizes a snapshot. Input and Output count capability, so a
// duplex device is counted in both and Total counts it once.
type Counts struct {
	Input  int `json:"input" yaml:"input"`
	Output int `json:"output" yaml:"output"`
	Total  int `json:"total" yaml:"total"`
}

// CountDevices computes Counts over devices.
func CountDevices(devices []Device) Counts {
	var c Counts
	for _, d := range devices {
		if d.Direction.CanInput() {
			c.Input++
		}
		if d.Direction.CanOutput() {
			c.Output++
		}
		c.Total++
	}
	return c
}
