// SPDX-License-Identifier: MIT
package native

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"audiomap/internal/audio"
	applog "audiomap/internal/log"

	"github.com/gen2brain/malgo"
)

// malgoDevice is the part of a miniaudio device record the adapter keeps.
type malgoDevice struct {
	ID        string
	Name      string
	IsDefault bool
}

// listMalgo asks miniaudio for the playback and capture devices of backend.
// Tests replace it.
var listMalgo = func(backend malgo.Backend) (playback, capture []malgoDevice, err error) {
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(msg string) {
		applog.Debugf("malgo: %s", msg)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}
	defer func() {
		if err := mctx.Uninit(); err != nil {
			applog.Debugf("malgo: uninit: %v", err)
		}
		mctx.Free()
	}()

	convert := func(kind malgo.DeviceType) ([]malgoDevice, error) {
		infos, err := mctx.Devices(kind)
		if err != nil {
			return nil, err
		}
		out := make([]malgoDevice, 0, len(infos))
		for _, info := range infos {
			out = append(out, malgoDevice{
				ID:        info.ID.String(),
				Name:      info.Name(),
				IsDefault: info.IsDefault != 0,
			})
		}
		return out, nil
	}
	if playback, err = convert(malgo.Playback); err != nil {
		return nil, nil, fmt.Errorf("failed to list playback devices: %w", err)
	}
	if capture, err = convert(malgo.Capture); err != nil {
		return nil, nil, fmt.Errorf("failed to list capture devices: %w", err)
	}
	return playback, capture, nil
}

// MalgoAdapter enumerates devices through miniaudio's Core Audio or WASAPI
// backend. Unlike the command-based adapters it sees the OS device
// identifier and the default-device flag directly.
type MalgoAdapter struct {
	backend malgo.Backend
	hostAPI string

	// miniaudio contexts are not safe to create concurrently on every backend
	mu sync.Mutex
}

// NewMalgoAdapter returns an adapter for one miniaudio backend. hostAPI is
// what the descriptors report, e.g. "Core Audio".
func NewMalgoAdapter(backend malgo.Backend, hostAPI string) *MalgoAdapter {
	return &MalgoAdapter{backend: backend, hostAPI: hostAPI}
}

func (m *MalgoAdapter) Name() string { return "malgo" }

type malgoRef struct {
	ID string
}

type malgoResult struct {
	playback, capture []malgoDevice
	err               error
}

// devices runs the blocking miniaudio calls off the caller's goroutine so ctx
// still bounds the wait.
func (m *MalgoAdapter) devices(ctx context.Context) ([]malgoDevice, []malgoDevice, error) {
	done := make(chan malgoResult, 1)
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		p, c, err := listMalgo(m.backend)
		done <- malgoResult{playback: p, capture: c, err: err}
	}()

	select {
	case r := <-done:
		return r.playback, r.capture, r.err
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("malgo: %w", ctx.Err())
	}
}

// Enumerate merges a device listed for both playback and capture under one
// ID into a single input_output descriptor.
func (m *MalgoAdapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	playback, capture, err := m.devices(ctx)
	if err != nil {
		return nil, err
	}

	raws := make([]audio.RawDescriptor, 0, len(playback)+len(capture))
	byID := make(map[string]int, len(playback))
	for _, d := range playback {
		byID[d.ID] = len(raws)
		raws = append(raws, m.descriptor(d, audio.DirectionOutput))
	}
	for _, d := range capture {
		if i, ok := byID[d.ID]; ok && d.ID != "" {
			raws[i].Direction = audio.DirectionInputOutput
			raws[i].IsDefault = raws[i].IsDefault || d.IsDefault
			continue
		}
		raws = append(raws, m.descriptor(d, audio.DirectionInput))
	}
	return raws, nil
}

func (m *MalgoAdapter) descriptor(d malgoDevice, dir audio.Direction) audio.RawDescriptor {
	return audio.RawDescriptor{
		NativeID:  d.ID,
		Name:      d.Name,
		Direction: dir,
		IsDefault: d.IsDefault,
		Index:     -1,
		HostAPI:   m.hostAPI,
		Ref:       malgoRef{ID: d.ID},
	}
}

// Resolve lists the devices again and reports what miniaudio knows of ref.
func (m *MalgoAdapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(malgoRef)
	if !ok {
		return nil, fmt.Errorf("malgo: foreign device handle %T", ref)
	}

	playback, capture, err := m.devices(ctx)
	if err != nil {
		return nil, err
	}
	details := audio.Details{}
	for _, list := range []struct {
		kind    string
		devices []malgoDevice
	}{{"playback", playback}, {"capture", capture}} {
		for _, d := range list.devices {
			if d.ID != r.ID {
				continue
			}
			details["malgo.id"] = d.ID
			details["malgo.backend"] = m.hostAPI
			details["malgo."+list.kind+"_default"] = strconv.FormatBool(d.IsDefault)
		}
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("malgo: device %s no longer present", r.ID)
	}
	return details, nil
}

var (
	_ audio.Adapter  = (*MalgoAdapter)(nil)
	_ audio.Resolver = (*MalgoAdapter)(nil)
)
