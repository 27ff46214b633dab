// SPDX-License-Identifier: MIT
package native

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"audiomap/internal/audio"
)

// PulseAdapter lists PulseAudio (or PipeWire-pulse) sinks and sources via
// pactl's JSON output. Sink and source names are persistent across reboots,
// so they become the native IDs.
type PulseAdapter struct {
	run             Runner
	includeMonitors bool
}

// NewPulseAdapter returns a PulseAdapter. Monitor sources mirror sinks and are
// left out unless includeMonitors is set.
func NewPulseAdapter(run Runner, includeMonitors bool) *PulseAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &PulseAdapter{run: run, includeMonitors: includeMonitors}
}

func (p *PulseAdapter) Name() string { return "pulse" }

type pulseInfo struct {
	DefaultSinkName   string `json:"default_sink_name"`
	DefaultSourceName string `json:"default_source_name"`
}

type pulseNode struct {
	Index               int               `json:"index"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Driver              string            `json:"driver"`
	State               string            `json:"state"`
	SampleSpecification string            `json:"sample_specification"`
	ChannelMap          string            `json:"channel_map"`
	MonitorOfSink       string            `json:"monitor_of_sink"`
	ActivePort          string            `json:"active_port"`
	Properties          map[string]string `json:"properties"`
}

// pulseRef is the handle attached to every Pulse device.
type pulseRef struct {
	Kind string // "sinks" or "sources"
	Name string
}

func (p *PulseAdapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	var info pulseInfo
	if err := p.pactl(ctx, &info, "info"); err != nil {
		return nil, err
	}

	var sinks, sources []pulseNode
	if err := p.pactl(ctx, &sinks, "list", "sinks"); err != nil {
		return nil, err
	}
	if err := p.pactl(ctx, &sources, "list", "sources"); err != nil {
		return nil, err
	}

	raws := make([]audio.RawDescriptor, 0, len(sinks)+len(sources))
	for _, s := range sinks {
		raws = append(raws, p.descriptor(s, "sinks", audio.DirectionOutput, info.DefaultSinkName))
	}
	for _, s := range sources {
		if isMonitor(s) && !p.includeMonitors {
			continue
		}
		raws = append(raws, p.descriptor(s, "sources", audio.DirectionInput, info.DefaultSourceName))
	}
	return raws, nil
}

func (p *PulseAdapter) descriptor(n pulseNode, kind string, dir audio.Direction, defaultName string) audio.RawDescriptor {
	return audio.RawDescriptor{
		NativeID:  n.Name,
		Name:      pulseDisplayName(n),
		Direction: dir,
		IsDefault: n.Name != "" && n.Name == defaultName,
		Index:     -1,
		HostAPI:   "PulseAudio",
		Ref:       pulseRef{Kind: kind, Name: n.Name},
	}
}

// Resolve looks the sink or source up again and reports its live state.
func (p *PulseAdapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(pulseRef)
	if !ok {
		return nil, fmt.Errorf("pulse: foreign device handle %T", ref)
	}

	var nodes []pulseNode
	if err := p.pactl(ctx, &nodes, "list", r.Kind); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Name != r.Name {
			continue
		}
		d := audio.Details{
			"pulse.name":        n.Name,
			"pulse.index":       fmt.Sprint(n.Index),
			"pulse.state":       n.State,
			"pulse.driver":      n.Driver,
			"pulse.sample_spec": n.SampleSpecification,
			"pulse.channel_map": n.ChannelMap,
			"pulse.active_port": n.ActivePort,
		}
		for _, key := range []string{"device.bus", "device.form_factor", "device.api", "alsa.card_name", "api.alsa.path"} {
			if v, ok := n.Properties[key]; ok {
				d[key] = v
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("pulse: %s %q no longer present", strings.TrimSuffix(r.Kind, "s"), r.Name)
}

func (p *PulseAdapter) pactl(ctx context.Context, v any, args ...string) error {
	out, err := p.run(ctx, "pactl", append([]string{"--format=json"}, args...)...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("failed to parse pactl %s output: %w", strings.Join(args, " "), err)
	}
	return nil
}

func isMonitor(n pulseNode) bool {
	if n.MonitorOfSink != "" && n.MonitorOfSink != "n/a" {
		return true
	}
	return n.Properties["device.class"] == "monitor"
}

func pulseDisplayName(n pulseNode) string {
	if d := strings.TrimSpace(n.Description); d != "" {
		return d
	}
	if d := strings.TrimSpace(n.Properties["device.description"]); d != "" {
		return d
	}
	return n.Name
}

var (
	_ audio.Adapter  = (*PulseAdapter)(nil)
	_ audio.Resolver = (*PulseAdapter)(nil)
)
