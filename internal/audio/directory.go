// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "audiomap/internal/log"
	"audiomap/internal/platform"
)

// Snapshot is the full device set of one discovery pass.
type Snapshot struct {
	Generation uint64    `json:"generation" yaml:"generation"`
	TakenAt    time.Time `json:"taken_at" yaml:"taken_at"`
	Devices    []Device  `json:"devices" yaml:"devices"`
}

// RefreshReport describes a successful refresh.
type RefreshReport struct {
	Generation uint64
	Devices    int
	Skipped    []error
	Duration   time.Duration
}

// Directory holds the current snapshot and rebuilds it on Refresh. Reads are
// lock-free against the last published snapshot; refreshes are serialized.
type Directory struct {
	adapter    Adapter
	normalizer *Normalizer

	refreshMu sync.Mutex
	current   atomic.Pointer[Snapshot]

	now func() time.Time
}

// NewDirectory builds an empty directory over adapter for platform p.
func NewDirectory(adapter Adapter, p platform.Platform) *Directory {
	d := &Directory{
		adapter:    adapter,
		normalizer: NewNormalizer(p, adapter.Name()),
		now:        time.Now,
	}
	d.current.Store(&Snapshot{Devices: []Device{}})
	return d
}

// Adapter returns the adapter the directory enumerates through.
func (d *Directory) Adapter() Adapter {
	return d.adapter
}

// Refresh runs one discovery pass and publishes the result. When the adapter
// fails the previous snapshot stays in place and a *DirectoryRefreshError is
// returned.
func (d *Directory) Refresh(ctx context.Context) (RefreshReport, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := d.now()
	prev := d.current.Load()

	raws, err := d.adapter.Enumerate(ctx)
	if err != nil {
		var nee *NativeEnumerationError
		if !errors.As(err, &nee) {
			err = &NativeEnumerationError{Backend: d.adapter.Name(), Err: err}
		}
		applog.Warnf("directory: refresh via %s failed, keeping snapshot %d: %v", d.adapter.Name(), prev.Generation, err)
		return RefreshReport{}, &DirectoryRefreshError{Generation: prev.Generation, Err: err}
	}

	devices, skipped := d.normalizer.NormalizeAll(raws)
	for _, s := range skipped {
		applog.Warnf("directory: skipping descriptor from %s: %v", d.adapter.Name(), s)
	}

	next := &Snapshot{
		Generation: prev.Generation + 1,
		TakenAt:    d.now(),
		Devices:    devices,
	}
	d.current.Store(next)

	report := RefreshReport{
		Generation: next.Generation,
		Devices:    len(devices),
		Skipped:    skipped,
		Duration:   d.now().Sub(start),
	}
	applog.Debugf("directory: snapshot %d published with %d devices (%d skipped) in %s",
		report.Generation, report.Devices, len(skipped), report.Duration)
	return report, nil
}

// Snapshot returns a copy of the current snapshot.
func (d *Directory) Snapshot() Snapshot {
	s := d.current.Load()
	return Snapshot{
		Generation: s.Generation,
		TakenAt:    s.TakenAt,
		Devices:    cloneDevices(s.Devices),
	}
}

// Generation is the generation of the current snapshot; 0 until the first
// successful refresh.
func (d *Directory) Generation() uint64 {
	return d.current.Load().Generation
}

// Devices returns every device of the current snapshot.
func (d *Directory) Devices() []Device {
	return cloneDevices(d.current.Load().Devices)
}

// List returns the devices that can act in direction dir. DirectionUnknown
// returns everything; DirectionInput includes duplex devices, as does
// DirectionOutput.
func (d *Directory) List(dir Direction) []Device {
	s := d.current.Load()
	out := make([]Device, 0, len(s.Devices))
	for _, dev := range s.Devices {
		if dev.Direction.Matches(dir) {
			out = append(out, dev)
		}
	}
	return out
}

// Count summarizes the current snapshot.
func (d *Directory) Count() Counts {
	return CountDevices(d.current.Load().Devices)
}

// FindOption tunes Find.
type FindOption func(*findOptions)

type findOptions struct {
	caseSensitive bool
}

// CaseSensitive makes Find match the substring exactly.
func CaseSensitive() FindOption {
	return func(o *findOptions) { o.caseSensitive = true }
}

// Find returns the devices whose name contains substr, ignoring case unless
// CaseSensitive is given. An empty substr matches every device; no match is
// an empty slice.
func (d *Directory) Find(substr string, opts ...FindOption) []Device {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	needle := substr
	if !o.caseSensitive {
		needle = strings.ToLower(needle)
	}

	s := d.current.Load()
	out := make([]Device, 0)
	for _, dev := range s.Devices {
		name := dev.Name
		if !o.caseSensitive {
			name = strings.ToLower(name)
		}
		if strings.Contains(name, needle) {
			out = append(out, dev)
		}
	}
	return out
}

// Lookup finds a device of the current snapshot by UID.
func (d *Directory) Lookup(id string) (Device, bool) {
	for _, dev := range d.current.Load().Devices {
		if dev.ID == id {
			return dev, true
		}
	}
	return Device{}, false
}

// Resolve re-resolves the device with the given UID through the adapter.
// Adapters that cannot re-resolve yield only the record's own fields.
func (d *Directory) Resolve(ctx context.Context, id string) (Device, Details, error) {
	dev, ok := d.Lookup(id)
	if !ok {
		return Device{}, nil, ErrDeviceNotFound
	}

	details := Details{"backend": d.adapter.Name()}
	r, ok := d.adapter.(Resolver)
	if !ok || dev.ref == nil {
		return dev, details, nil
	}

	native, err := r.Resolve(ctx, dev.ref)
	if err != nil {
		return dev, details, &NativeEnumerationError{Backend: d.adapter.Name(), Err: err}
	}
	for k, v := range native {
		details[k] = v
	}
	return dev, details, nil
}

func cloneDevices(in []Device) []Device {
	out := make([]Device, len(in))
	copy(out, in)
	return out
}
