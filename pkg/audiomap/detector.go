// SPDX-License-Identifier: MIT
package audiomap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"audiomap/internal/audio"
	"audiomap/internal/audio/pa"
	"audiomap/internal/config"
	"audiomap/internal/events"
	applog "audiomap/internal/log"
	"audiomap/internal/metrics"
	"audiomap/internal/native"
	"audiomap/internal/platform"
)

// Detector is the entry point to the device directory of one process. It is
// safe for concurrent use.
type Detector struct {
	platform Platform
	timeout  time.Duration
	dir      *audio.Directory

	bus     *events.Bus
	metrics *metrics.Recorder

	// initMu serializes the lazy first refresh.
	initMu sync.Mutex
}

// New resolves the platform and selects the adapter for it. It fails with
// *UnsupportedPlatformError when the OS has no native adapter; no devices are
// enumerated until the first query or Refresh.
func New(opts ...Option) (*Detector, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := o.platform
	if !o.platformSet {
		p, _ = platform.Detect()
	}
	if !p.Supported() {
		goos := platform.GOOS()
		if o.platformSet {
			goos = string(p)
		}
		return nil, &UnsupportedPlatformError{GOOS: goos}
	}

	adapter, err := selectAdapter(p, o)
	if err != nil {
		return nil, err
	}

	d := &Detector{
		platform: p,
		timeout:  o.timeout,
		dir:      audio.NewDirectory(adapter, p),
		bus:      events.New(),
		metrics:  metrics.New(o.registerer),
	}

	applog.Debugf("detector: platform %s, backend %s", p, adapter.Name())
	return d, nil
}

func selectAdapter(p Platform, o options) (audio.Adapter, error) {
	if o.adapter != nil {
		return o.adapter, nil
	}

	nativeOpts := native.Options{Runner: o.runner, IncludeMonitors: o.includeMonitors}
	switch o.backend {
	case config.BackendNative, "":
		return native.ForPlatform(p, nativeOpts)
	case config.BackendPortAudio:
		return pa.New(o.hostAPI), nil
	case config.BackendAuto:
		primary, err := native.ForPlatform(p, nativeOpts)
		if err != nil {
			return nil, err
		}
		return &audio.FallbackAdapter{Primary: primary, Secondary: pa.New(o.hostAPI)}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", o.backend)
}

// CurrentPlatform is the platform the detector enumerates.
func (d *Detector) CurrentPlatform() Platform {
	return d.platform
}

// Backend names the adapter in use, e.g. "pulse+alsa" or "portaudio".
func (d *Detector) Backend() string {
	return d.dir.Adapter().Name()
}

// Refresh runs one discovery pass bounded by the configured timeout. On
// failure the previous snapshot keeps being served and the error is a
// *DirectoryRefreshError.
func (d *Detector) Refresh(ctx context.Context) (RefreshReport, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	backend := d.Backend()
	report, err := d.dir.Refresh(ctx)
	if err != nil {
		d.metrics.ObserveFailure(backend)
		d.bus.Publish(events.RefreshFailedEvent{
			Generation: d.dir.Generation(),
			Backend:    backend,
			Error:      err.Error(),
			Timestamp:  time.Now(),
		})
		return report, err
	}

	c := d.dir.Count()
	d.metrics.ObserveRefresh(backend, report.Generation, c.Input, c.Output, c.Total, len(report.Skipped), report.Duration)
	d.bus.Publish(events.SnapshotRefreshedEvent{
		Generation: report.Generation,
		Backend:    backend,
		Devices:    c.Total,
		Input:      c.Input,
		Output:     c.Output,
		Skipped:    len(report.Skipped),
		Duration:   report.Duration,
		Timestamp:  time.Now(),
	})
	return report, nil
}

// ensure runs the first refresh on demand. Once a snapshot exists queries
// never touch the OS again.
func (d *Detector) ensure() error {
	if d.dir.Generation() > 0 {
		return nil
	}
	d.initMu.Lock()
	defer d.initMu.Unlock()
	if d.dir.Generation() > 0 {
		return nil
	}
	_, err := d.Refresh(context.Background())
	return err
}

// ListAllDevices returns every device of the current snapshot.
func (d *Detector) ListAllDevices() ([]Device, error) {
	if err := d.ensure(); err != nil {
		return nil, err
	}
	return d.dir.Devices(), nil
}

// ListInputDevices returns the devices that can record, duplex included.
func (d *Detector) ListInputDevices() ([]Device, error) {
	if err := d.ensure(); err != nil {
		return nil, err
	}
	return d.dir.List(audio.DirectionInput), nil
}

// ListOutputDevices returns the devices that can play, duplex included.
func (d *Detector) ListOutputDevices() ([]Device, error) {
	if err := d.ensure(); err != nil {
		return nil, err
	}
	return d.dir.List(audio.DirectionOutput), nil
}

// DeviceCount counts the current snapshot.
func (d *Detector) DeviceCount() (Counts, error) {
	if err := d.ensure(); err != nil {
		return Counts{}, err
	}
	return d.dir.Count(), nil
}

// Find returns the devices whose name contains query, ignoring case unless
// CaseSensitive is passed.
func (d *Detector) Find(query string, opts ...FindOption) ([]Device, error) {
	if err := d.ensure(); err != nil {
		return nil, err
	}
	return d.dir.Find(query, opts...), nil
}

// Lookup returns the device with the given UID from the current snapshot.
func (d *Detector) Lookup(id string) (Device, bool) {
	return d.dir.Lookup(id)
}

// Snapshot returns the snapshot being served without refreshing.
func (d *Detector) Snapshot() Snapshot {
	return d.dir.Snapshot()
}

// Describe returns the device with UID id together with the properties its
// adapter reports for it now. Unknown UIDs yield ErrDeviceNotFound.
func (d *Detector) Describe(ctx context.Context, id string) (Device, Details, error) {
	if err := d.ensure(); err != nil {
		return Device{}, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.dir.Resolve(ctx, id)
}

// Subscribe registers handler for refresh notifications. handler must be a
// func(RefreshedEvent) or func(RefreshFailedEvent); it runs on its own
// goroutine. The returned function unsubscribes.
func (d *Detector) Subscribe(handler any) func() {
	return d.bus.Subscribe(handler)
}

// Close releases the event bus. Subscriptions end with it.
func (d *Detector) Close() error {
	return d.bus.Close()
}
