// Package pa adapts PortAudio's device list to the audio directory. It is the
// cross-platform alternative to the OS-native adapters and the only one that
// reports channel counts, sample rates and latencies.
package pa

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"audiomap/internal/audio"
	applog "audiomap/internal/log"

	"github.com/gordonklaus/portaudio"
)

var (
	paLibInitialize  = portaudio.Initialize
	paLibTerminate   = portaudio.Terminate
	paLibDevicesFunc = portaudio.Devices
)

// PortAudio keeps global state; one enumeration at a time.
var paMu sync.Mutex

// Initialize sets up the PortAudio subsystem.
// This must be paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paDevices returns all available PortAudio devices, never nil on success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		return []*portaudio.DeviceInfo{}, nil
	}
	return devices, nil
}

// Adapter enumerates PortAudio devices. PortAudio indices shift on hot-plug,
// so descriptors carry no stable index and rely on (host API, name) for
// identity.
type Adapter struct {
	hostAPI string
}

// New returns a PortAudio adapter. A non-empty hostAPI (e.g. "Windows WASAPI",
// "MME") keeps only the devices of that host API.
func New(hostAPI string) *Adapter {
	return &Adapter{hostAPI: strings.TrimSpace(hostAPI)}
}

func (a *Adapter) Name() string { return "portaudio" }

// deviceRef identifies a PortAudio device across Initialize/Terminate cycles.
type deviceRef struct {
	HostAPI string
	Name    string
	Nth     int // among devices sharing HostAPI and Name
}

func (a *Adapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	var raws []audio.RawDescriptor
	err := withPortAudio(func() error {
		devices, err := paDevices()
		if err != nil {
			return err
		}

		nth := make(map[[2]string]int)
		raws = make([]audio.RawDescriptor, 0, len(devices))
		for _, d := range devices {
			if err := ctx.Err(); err != nil {
				return err
			}
			hostAPI := hostAPIName(d)
			if a.hostAPI != "" && !strings.EqualFold(hostAPI, a.hostAPI) {
				continue
			}
			key := [2]string{hostAPI, d.Name}
			ref := deviceRef{HostAPI: hostAPI, Name: d.Name, Nth: nth[key]}
			nth[key]++

			raws = append(raws, audio.RawDescriptor{
				Name:      d.Name,
				Direction: audio.DirectionFromChannels(d.MaxInputChannels, d.MaxOutputChannels),
				IsDefault: isDefault(d),
				Index:     -1,
				HostAPI:   hostAPI,
				Ref:       ref,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raws, nil
}

// Resolve finds the device again and reports its stream parameters.
func (a *Adapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(deviceRef)
	if !ok {
		return nil, fmt.Errorf("portaudio: foreign device handle %T", ref)
	}

	var details audio.Details
	err := withPortAudio(func() error {
		devices, err := paDevices()
		if err != nil {
			return err
		}
		seen := 0
		for _, d := range devices {
			if hostAPIName(d) != r.HostAPI || d.Name != r.Name {
				continue
			}
			if seen < r.Nth {
				seen++
				continue
			}
			details = deviceDetails(d)
			return nil
		}
		return fmt.Errorf("portaudio: device %q (%s) no longer present", r.Name, r.HostAPI)
	})
	return details, err
}

func withPortAudio(fn func() error) error {
	paMu.Lock()
	defer paMu.Unlock()

	if err := Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := Terminate(); err != nil {
			applog.Warnf("%v", err)
		}
	}()
	return fn()
}

func deviceDetails(d *portaudio.DeviceInfo) audio.Details {
	return audio.Details{
		"portaudio.index":               strconv.Itoa(d.Index),
		"portaudio.host_api":            hostAPIName(d),
		"portaudio.input_channels":      strconv.Itoa(d.MaxInputChannels),
		"portaudio.output_channels":     strconv.Itoa(d.MaxOutputChannels),
		"portaudio.sample_rate":         fmt.Sprintf("%.0f", d.DefaultSampleRate),
		"portaudio.low_input_latency":   fmt.Sprintf("%.2fms", d.DefaultLowInputLatency.Seconds()*1000),
		"portaudio.high_input_latency":  fmt.Sprintf("%.2fms", d.DefaultHighInputLatency.Seconds()*1000),
		"portaudio.low_output_latency":  fmt.Sprintf("%.2fms", d.DefaultLowOutputLatency.Seconds()*1000),
		"portaudio.high_output_latency": fmt.Sprintf("%.2fms", d.DefaultHighOutputLatency.Seconds()*1000),
	}
}

func hostAPIName(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return ""
	}
	return d.HostApi.Name
}

// isDefault reports whether d is its host API's default for the direction(s)
// it supports.
func isDefault(d *portaudio.DeviceInfo) bool {
	api := d.HostApi
	if api == nil {
		return false
	}
	return (d.MaxInputChannels > 0 && sameDevice(api.DefaultInputDevice, d)) ||
		(d.MaxOutputChannels > 0 && sameDevice(api.DefaultOutputDevice, d))
}

func sameDevice(a, b *portaudio.DeviceInfo) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || (a.Name == b.Name && hostAPIName(a) == hostAPIName(b))
}

var (
	_ audio.Adapter  = (*Adapter)(nil)
	_ audio.Resolver = (*Adapter)(nil)
)
