// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"time"

	applog "audiomap/internal/log"
)

// RawDescriptor is a device as a native adapter reports it, before
// normalization.
type RawDescriptor struct {
	// NativeID is a persistent OS identifier (Pulse sink name, ALSA
	// hw:CARD=..., MMDevice endpoint id). Empty when the OS exposes none.
	NativeID string

	Name      string
	Direction Direction
	IsDefault bool

	// Index is a platform-assigned stable index, or -1 when the platform has
	// none that survives hot-plug.
	Index int

	// HostAPI names the subsystem the device was found through when one
	// adapter spans several (PortAudio's MME, WASAPI, ...).
	HostAPI string

	// Ref is opaque to everything but the adapter.
	Ref any
}

// Adapter enumerates the devices of one OS audio subsystem. Enumerate is a
// read-only query and returns the devices in OS order.
type Adapter interface {
	Name() string
	Enumerate(ctx context.Context) ([]RawDescriptor, error)
}

// Details are backend-specific properties of a re-resolved device.
type Details map[string]string

// Resolver is implemented by adapters that can look a device up again from
// the ref they attached to it.
type Resolver interface {
	Resolve(ctx context.Context, ref any) (Details, error)
}

// StaticAdapter returns a fixed descriptor list. It is meant for tests and
// for hosts that already know their devices.
type StaticAdapter struct {
	AdapterName string
	Descriptors []RawDescriptor
	Err         error
}

func (s *StaticAdapter) Name() string {
	if s.AdapterName == "" {
		return "static"
	}
	return s.AdapterName
}

func (s *StaticAdapter) Enumerate(ctx context.Context) ([]RawDescriptor, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]RawDescriptor, len(s.Descriptors))
	copy(out, s.Descriptors)
	return out, nil
}

// FallbackAdapter tries Primary and, if it fails, Secondary. It is how the
// Linux adapter degrades from PulseAudio to bare ALSA. When ctx has a
// deadline, Primary gets half of the remaining time so a hung Primary still
// leaves Secondary room to answer.
type FallbackAdapter struct {
	Primary   Adapter
	Secondary Adapter
}

func (f *FallbackAdapter) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f *FallbackAdapter) Enumerate(ctx context.Context) ([]RawDescriptor, error) {
	primaryCtx := ctx
	if dl, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		primaryCtx, cancel = context.WithTimeout(ctx, time.Until(dl)/2)
		defer cancel()
	}

	raws, err := f.Primary.Enumerate(primaryCtx)
	if err == nil {
		return raws, nil
	}
	applog.Warnf("%s enumeration failed, falling back to %s: %v", f.Primary.Name(), f.Secondary.Name(), err)

	raws, err2 := f.Secondary.Enumerate(ctx)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return raws, nil
}

// Resolve forwards to whichever of the two adapters understands ref.
func (f *FallbackAdapter) Resolve(ctx context.Context, ref any) (Details, error) {
	var errs []error
	for _, a := range []Adapter{f.Primary, f.Secondary} {
		r, ok := a.(Resolver)
		if !ok {
			continue
		}
		details, err := r.Resolve(ctx, ref)
		if err == nil {
			return details, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no resolver available")
	}
	return nil, errors.Join(errs...)
}

var (
	_ Adapter  = (*StaticAdapter)(nil)
	_ Adapter  = (*FallbackAdapter)(nil)
	_ Resolver = (*FallbackAdapter)(nil)
)
