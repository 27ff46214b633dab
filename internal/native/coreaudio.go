// SPDX-License-Identifier: MIT
package native

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"audiomap/internal/audio"

	"howett.net/plist"
)

const spYes = "spaudio_yes"

// CoreAudioAdapter enumerates devices through system_profiler's XML plist
// output. system_profiler exposes no persistent device identifier, so these
// devices get composite UIDs.
type CoreAudioAdapter struct {
	run Runner
}

func NewCoreAudioAdapter(run Runner) *CoreAudioAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &CoreAudioAdapter{run: run}
}

func (c *CoreAudioAdapter) Name() string { return "coreaudio" }

// spItem is one node of the SPAudioDataType tree. Device nodes carry the
// coreaudio_* keys; grouping nodes only carry _items.
type spItem struct {
	Name          string   `plist:"_name"`
	Items         []spItem `plist:"_items"`
	InputChannels any      `plist:"coreaudio_device_input"`
	OutputChans   any      `plist:"coreaudio_device_output"`
	DefaultInput  string   `plist:"coreaudio_default_audio_input_device"`
	DefaultOutput string   `plist:"coreaudio_default_audio_output_device"`
	SystemOutput  string   `plist:"coreaudio_default_audio_system_device"`
	Manufacturer  string   `plist:"coreaudio_device_manufacturer"`
	Transport     string   `plist:"coreaudio_device_transport"`
	SampleRate    any      `plist:"coreaudio_device_srate"`
}

type coreAudioRef struct {
	Name string
}

func (c *CoreAudioAdapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	devices, err := c.devices(ctx)
	if err != nil {
		return nil, err
	}

	raws := make([]audio.RawDescriptor, 0, len(devices))
	for _, d := range devices {
		dir := audio.DirectionFromChannels(plistInt(d.InputChannels), plistInt(d.OutputChans))
		isDefault := false
		switch dir {
		case audio.DirectionInput:
			isDefault = d.DefaultInput == spYes
		case audio.DirectionOutput:
			isDefault = d.DefaultOutput == spYes
		case audio.DirectionInputOutput:
			isDefault = d.DefaultInput == spYes || d.DefaultOutput == spYes
		}
		raws = append(raws, audio.RawDescriptor{
			Name:      d.Name,
			Direction: dir,
			IsDefault: isDefault,
			Index:     -1,
			HostAPI:   "Core Audio",
			Ref:       coreAudioRef{Name: d.Name},
		})
	}
	return raws, nil
}

// Resolve profiles again and reports the device's hardware properties.
func (c *CoreAudioAdapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(coreAudioRef)
	if !ok {
		return nil, fmt.Errorf("coreaudio: foreign device handle %T", ref)
	}

	devices, err := c.devices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != r.Name {
			continue
		}
		details := audio.Details{
			"coreaudio.input_channels":  strconv.Itoa(plistInt(d.InputChannels)),
			"coreaudio.output_channels": strconv.Itoa(plistInt(d.OutputChans)),
		}
		if d.Manufacturer != "" {
			details["coreaudio.manufacturer"] = d.Manufacturer
		}
		if d.Transport != "" {
			details["coreaudio.transport"] = strings.TrimPrefix(d.Transport, "coreaudio_device_type_")
		}
		if sr := plistInt(d.SampleRate); sr > 0 {
			details["coreaudio.sample_rate"] = strconv.Itoa(sr)
		}
		if d.SystemOutput == spYes {
			details["coreaudio.system_output"] = "true"
		}
		return details, nil
	}
	return nil, fmt.Errorf("coreaudio: device %q no longer present", r.Name)
}

func (c *CoreAudioAdapter) devices(ctx context.Context) ([]spItem, error) {
	out, err := c.run(ctx, "system_profiler", "SPAudioDataType", "-xml")
	if err != nil {
		return nil, err
	}

	var root []spItem
	if _, err := plist.Unmarshal(out, &root); err != nil {
		return nil, fmt.Errorf("failed to parse system_profiler output: %w", err)
	}

	var devices []spItem
	var walk func(items []spItem)
	walk = func(items []spItem) {
		for _, it := range items {
			if isCoreAudioDevice(it) {
				devices = append(devices, it)
				continue
			}
			walk(it.Items)
		}
	}
	walk(root)
	return devices, nil
}

func isCoreAudioDevice(it spItem) bool {
	return it.InputChannels != nil || it.OutputChans != nil || it.Manufacturer != "" || it.Transport != ""
}

// plistInt accepts the integer, real and string encodings system_profiler
// has used for channel counts across macOS releases.
func plistInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

var (
	_ audio.Adapter  = (*CoreAudioAdapter)(nil)
	_ audio.Resolver = (*CoreAudioAdapter)(nil)
)
