// SPDX-License-Identifier: MIT
package native

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"audiomap/internal/audio"
)

const pnpQuery = "Get-PnpDevice -Class AudioEndpoint -PresentOnly | Select-Object FriendlyName,InstanceId,Status | ConvertTo-Json"

// WASAPIAdapter lists Windows audio endpoints through the PnP subsystem. The
// MMDevice endpoint ID embedded in each InstanceId is stable across reboots
// and becomes the native ID.
type WASAPIAdapter struct {
	run Runner
}

func NewWASAPIAdapter(run Runner) *WASAPIAdapter {
	if run == nil {
		run = ExecRunner
	}
	return &WASAPIAdapter{run: run}
}

func (w *WASAPIAdapter) Name() string { return "wasapi" }

type pnpDevice struct {
	FriendlyName string `json:"FriendlyName"`
	InstanceID   string `json:"InstanceId"`
	Status       string `json:"Status"`
	Class        string `json:"Class,omitempty"`
	Manufacturer string `json:"Manufacturer,omitempty"`
}

type wasapiRef struct {
	InstanceID string
}

func (w *WASAPIAdapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	devices, err := w.query(ctx, pnpQuery)
	if err != nil {
		return nil, err
	}

	raws := make([]audio.RawDescriptor, 0, len(devices))
	for _, d := range devices {
		endpoint, dir := parseEndpoint(d.InstanceID)
		raws = append(raws, audio.RawDescriptor{
			NativeID:  endpoint,
			Name:      d.FriendlyName,
			Direction: dir,
			Index:     -1,
			HostAPI:   "Windows WASAPI",
			Ref:       wasapiRef{InstanceID: d.InstanceID},
		})
	}
	return raws, nil
}

// Resolve queries the single PnP node again.
func (w *WASAPIAdapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(wasapiRef)
	if !ok {
		return nil, fmt.Errorf("wasapi: foreign device handle %T", ref)
	}

	script := fmt.Sprintf("Get-PnpDevice -InstanceId '%s' | Select-Object FriendlyName,InstanceId,Status,Class,Manufacturer | ConvertTo-Json",
		strings.ReplaceAll(r.InstanceID, "'", "''"))
	devices, err := w.query(ctx, script)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("wasapi: endpoint %q no longer present", r.InstanceID)
	}

	d := devices[0]
	endpoint, _ := parseEndpoint(d.InstanceID)
	details := audio.Details{
		"wasapi.instance_id": d.InstanceID,
		"wasapi.endpoint_id": endpoint,
		"wasapi.status":      d.Status,
	}
	if d.Class != "" {
		details["wasapi.class"] = d.Class
	}
	if d.Manufacturer != "" {
		details["wasapi.manufacturer"] = d.Manufacturer
	}
	return details, nil
}

func (w *WASAPIAdapter) query(ctx context.Context, script string) ([]pnpDevice, error) {
	out, err := w.run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return nil, err
	}
	return decodePnP(out)
}

// decodePnP accepts ConvertTo-Json output, which is a bare object when the
// pipeline yields one item and nothing at all when it yields none.
func decodePnP(out []byte) ([]pnpDevice, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return []pnpDevice{}, nil
	}

	if out[0] == '{' {
		var d pnpDevice
		if err := json.Unmarshal(out, &d); err != nil {
			return nil, fmt.Errorf("failed to parse PnP device: %w", err)
		}
		return []pnpDevice{d}, nil
	}

	var devices []pnpDevice
	if err := json.Unmarshal(out, &devices); err != nil {
		return nil, fmt.Errorf("failed to parse PnP device list: %w", err)
	}
	return devices, nil
}

// parseEndpoint extracts the MMDevice endpoint ID from an InstanceId such as
// SWD\MMDEVAPI\{0.0.1.00000000}.{guid}. The third field of the prefix is the
// data flow: 0 for render, 1 for capture.
func parseEndpoint(instanceID string) (string, audio.Direction) {
	endpoint := instanceID
	if i := strings.LastIndexByte(instanceID, '\\'); i >= 0 {
		endpoint = instanceID[i+1:]
	}

	switch {
	case strings.HasPrefix(endpoint, "{0.0.0."):
		return endpoint, audio.DirectionOutput
	case strings.HasPrefix(endpoint, "{0.0.1."):
		return endpoint, audio.DirectionInput
	}
	return endpoint, audio.DirectionUnknown
}

var (
	_ audio.Adapter  = (*WASAPIAdapter)(nil)
	_ audio.Resolver = (*WASAPIAdapter)(nil)
)
