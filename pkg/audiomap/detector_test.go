// SPDX-License-Identifier: MIT
package audiomap

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"audiomap/internal/audio"
	applog "audiomap/internal/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMain(m *testing.M) {
	applog.Discard()
	os.Exit(m.Run())
}

func fixture() []RawDescriptor {
	return []RawDescriptor{
		{Name: "MacBook Pro Microphone", Direction: DirectionInput, IsDefault: true, Index: -1, HostAPI: "Core Audio"},
		{Name: "MacBook Pro Speakers", Direction: DirectionOutput, IsDefault: true, Index: -1, HostAPI: "Core Audio"},
		{Name: "Scarlett 2i2 USB", Direction: DirectionInputOutput, Index: -1, HostAPI: "Core Audio"},
		{Name: "LG UltraFine Display Audio", Direction: DirectionOutput, Index: -1, HostAPI: "Core Audio"},
	}
}

func newTestDetector(t *testing.T, a Adapter, opts ...Option) *Detector {
	t.Helper()
	d, err := New(append([]Option{WithPlatform(Darwin), WithAdapter(a)}, opts...)...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNew_UnsupportedPlatform(t *testing.T) {
	_, err := New(WithPlatform(Unknown), WithAdapter(&audio.StaticAdapter{}))
	var upe *UnsupportedPlatformError
	if !errors.As(err, &upe) {
		t.Fatalf("expected UnsupportedPlatformError, got %v", err)
	}
	if !errors.Is(err, ErrAudioDetection) {
		t.Error("UnsupportedPlatformError should be in the ErrAudioDetection family")
	}
}

func TestNew_BackendSelection(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		backend  string
		want     string
	}{
		{"Linux native", Linux, "native", "pulse+alsa"},
		{"Darwin native", Darwin, "native", "malgo+coreaudio"},
		{"Windows native", Windows, "native", "malgo+wasapi"},
		{"PortAudio", Windows, "portaudio", "portaudio"},
		{"Auto", Darwin, "auto", "malgo+coreaudio+portaudio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(WithPlatform(tt.platform), WithBackend(tt.backend))
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			defer d.Close()
			if d.Backend() != tt.want {
				t.Errorf("Backend() = %q, want %q", d.Backend(), tt.want)
			}
			if d.CurrentPlatform() != tt.platform {
				t.Errorf("CurrentPlatform() = %s, want %s", d.CurrentPlatform(), tt.platform)
			}
		})
	}

	if _, err := New(WithPlatform(Linux), WithBackend("jack")); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNew_WithRunner(t *testing.T) {
	outputs := map[string]string{
		"pactl --format=json info":         `{"default_sink_name":"speakers","default_source_name":"mic"}`,
		"pactl --format=json list sinks":   `[{"index":1,"name":"speakers","description":"Desk Speakers"}]`,
		"pactl --format=json list sources": `[{"index":2,"name":"mic","description":"Desk Mic","monitor_of_sink":"n/a"}]`,
	}
	var calls []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		calls = append(calls, key)
		out, ok := outputs[key]
		if !ok {
			return nil, errors.New("unexpected command " + key)
		}
		return []byte(out), nil
	}

	d, err := New(WithPlatform(Linux), WithBackend("native"), WithRunner(runner))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer d.Close()

	devices, err := d.ListAllDevices()
	if err != nil {
		t.Fatalf("ListAllDevices error: %v", err)
	}
	if len(devices) != 2 || len(calls) != 3 {
		t.Fatalf("got %d devices after %d commands, want 2 after 3", len(devices), len(calls))
	}
	for _, dev := range devices {
		if !dev.IsDefault {
			t.Errorf("%s should be the default %s", dev.Name, dev.Direction)
		}
	}
}

func TestDetector_Queries(t *testing.T) {
	d := newTestDetector(t, &audio.StaticAdapter{AdapterName: "coreaudio", Descriptors: fixture()})

	if d.Snapshot().Generation != 0 {
		t.Fatal("New must not enumerate")
	}

	all, err := d.ListAllDevices()
	if err != nil {
		t.Fatalf("ListAllDevices error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d devices, want 4", len(all))
	}
	for _, dev := range all {
		if dev.Platform != Darwin || dev.Backend != "coreaudio" {
			t.Errorf("device not stamped: %+v", dev)
		}
	}

	inputs, _ := d.ListInputDevices()
	outputs, _ := d.ListOutputDevices()
	if len(inputs) != 2 || len(outputs) != 3 {
		t.Errorf("inputs %d outputs %d, want 2 and 3", len(inputs), len(outputs))
	}

	c, err := d.DeviceCount()
	if err != nil {
		t.Fatal(err)
	}
	if c != (Counts{Input: 2, Output: 3, Total: 4}) {
		t.Errorf("DeviceCount() = %+v", c)
	}

	found, _ := d.Find("macbook")
	if len(found) != 2 {
		t.Errorf("Find(macbook) = %d, want 2", len(found))
	}
	found, _ = d.Find("macbook", CaseSensitive())
	if len(found) != 0 {
		t.Errorf("case-sensitive Find(macbook) = %d, want 0", len(found))
	}
	found, _ = d.Find("")
	if len(found) != len(all) {
		t.Errorf("Find(\"\") = %d, want all", len(found))
	}

	if d.Snapshot().Generation != 1 {
		t.Errorf("queries should share one lazy refresh, generation %d", d.Snapshot().Generation)
	}
}

func TestDetector_QueriesAreReadsAfterFirstRefresh(t *testing.T) {
	a := &audio.StaticAdapter{Descriptors: fixture()}
	d := newTestDetector(t, a)

	if _, err := d.ListAllDevices(); err != nil {
		t.Fatal(err)
	}
	a.Descriptors = fixture()[:1]

	all, _ := d.ListAllDevices()
	if len(all) != 4 {
		t.Errorf("query re-enumerated: got %d devices", len(all))
	}

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	all, _ = d.ListAllDevices()
	if len(all) != 1 {
		t.Errorf("Refresh should replace the snapshot, got %d devices", len(all))
	}
}

func TestDetector_StableUIDs(t *testing.T) {
	a := &audio.StaticAdapter{Descriptors: fixture()}
	d := newTestDetector(t, a)

	first, _ := d.ListAllDevices()
	ids := make(map[string]string)
	for _, dev := range first {
		ids[dev.Name] = dev.ID
	}

	reordered := fixture()
	reordered[0], reordered[2] = reordered[2], reordered[0]
	reordered[1].Name = "MacBook Pro  speakers"
	a.Descriptors = reordered
	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	second, _ := d.ListAllDevices()
	for _, dev := range second {
		want, ok := ids[dev.Name]
		if dev.Name == "MacBook Pro  speakers" {
			want, ok = ids["MacBook Pro Speakers"], true
		}
		if !ok || dev.ID != want {
			t.Errorf("UID of %q changed across refresh: %s -> %s", dev.Name, want, dev.ID)
		}
	}
}

func TestDetector_FailureSurfaces(t *testing.T) {
	d := newTestDetector(t, &audio.StaticAdapter{AdapterName: "coreaudio", Err: errors.New("system_profiler: signal: killed")})

	_, err := d.ListAllDevices()
	var dre *DirectoryRefreshError
	if !errors.As(err, &dre) {
		t.Fatalf("expected DirectoryRefreshError, got %v", err)
	}
	var nee *NativeEnumerationError
	if !errors.As(err, &nee) || nee.Backend != "coreaudio" {
		t.Errorf("expected NativeEnumerationError from coreaudio, got %v", err)
	}

	if _, err := d.DeviceCount(); !errors.Is(err, ErrAudioDetection) {
		t.Errorf("DeviceCount should retry and fail, got %v", err)
	}
}

func TestDetector_StaleSnapshotAfterFailedRefresh(t *testing.T) {
	a := &audio.StaticAdapter{Descriptors: fixture()}
	d := newTestDetector(t, a)

	before, err := d.ListAllDevices()
	if err != nil {
		t.Fatal(err)
	}

	a.Err = errors.New("coreaudiod not responding")
	if _, err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	after, err := d.ListAllDevices()
	if err != nil {
		t.Fatalf("queries should keep serving the old snapshot, got %v", err)
	}
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Error("snapshot changed after failed refresh")
	}
}

func TestDetector_ZeroDevices(t *testing.T) {
	d := newTestDetector(t, &audio.StaticAdapter{})

	all, err := d.ListAllDevices()
	if err != nil || len(all) != 0 {
		t.Errorf("ListAllDevices() = %v, %v", all, err)
	}
	c, err := d.DeviceCount()
	if err != nil || c != (Counts{}) {
		t.Errorf("DeviceCount() = %+v, %v", c, err)
	}
	found, err := d.Find("anything")
	if err != nil || found == nil || len(found) != 0 {
		t.Errorf("Find() = %v, %v", found, err)
	}
}

func TestDetector_Describe(t *testing.T) {
	d := newTestDetector(t, &audio.StaticAdapter{AdapterName: "coreaudio", Descriptors: fixture()})

	all, err := d.ListAllDevices()
	if err != nil {
		t.Fatal(err)
	}
	dev, details, err := d.Describe(context.Background(), all[0].ID)
	if err != nil {
		t.Fatalf("Describe error: %v", err)
	}
	if dev.ID != all[0].ID || details["backend"] != "coreaudio" {
		t.Errorf("Describe() = %+v, %v", dev, details)
	}

	if _, _, err := d.Describe(context.Background(), "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDetector_SubscribeAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := &audio.StaticAdapter{AdapterName: "coreaudio", Descriptors: fixture()}
	d := newTestDetector(t, a, WithMetrics(reg))

	refreshed := make(chan RefreshedEvent, 1)
	failed := make(chan RefreshFailedEvent, 1)
	defer d.Subscribe(func(e RefreshedEvent) { refreshed <- e })()
	defer d.Subscribe(func(e RefreshFailedEvent) { failed <- e })()

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-refreshed:
		if e.Generation != 1 || e.Devices != 4 || e.Input != 2 || e.Output != 3 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("refresh event not delivered")
	}

	a.Err = errors.New("boom")
	_, _ = d.Refresh(context.Background())
	select {
	case e := <-failed:
		if e.Generation != 1 || !strings.Contains(e.Error, "boom") {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("failure event not delivered")
	}

	n, err := testutil.GatherAndCount(reg, "audiomap_directory_refreshes_total")
	if err != nil || n != 2 {
		t.Errorf("refreshes_total series = %d, %v, want 2 (ok, error)", n, err)
	}
}

func TestDetector_TwoDetectorsOneRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newTestDetector(t, &audio.StaticAdapter{AdapterName: "coreaudio", Descriptors: fixture()}, WithMetrics(reg))
	b := newTestDetector(t, &audio.StaticAdapter{AdapterName: "coreaudio", Descriptors: fixture()[:1]}, WithMetrics(reg))

	if _, err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := `
# HELP audiomap_directory_refreshes_total Discovery passes by result
# TYPE audiomap_directory_refreshes_total counter
audiomap_directory_refreshes_total{backend="coreaudio",result="ok"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "audiomap_directory_refreshes_total"); err != nil {
		t.Error(err)
	}
}

func TestDetector_TimeoutReachesAdapter(t *testing.T) {
	a := &deadlineAdapter{}
	d := newTestDetector(t, a, WithTimeout(50*time.Millisecond))

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.remaining <= 0 || a.remaining > 50*time.Millisecond {
		t.Errorf("adapter saw deadline %s away, want <= 50ms", a.remaining)
	}
}

type deadlineAdapter struct {
	remaining time.Duration
}

func (a *deadlineAdapter) Name() string { return "deadline" }

func (a *deadlineAdapter) Enumerate(ctx context.Context) ([]RawDescriptor, error) {
	if dl, ok := ctx.Deadline(); ok {
		a.remaining = time.Until(dl)
	}
	return nil, nil
}
