// SPDX-License-Identifier: MIT
package audiomap

import "context"

// newDetector builds the transient detector behind the free functions.
var newDetector = func() (*Detector, error) { return New() }

func withFreshDetector[T any](fn func(*Detector) T) (T, error) {
	var zero T
	d, err := newDetector()
	if err != nil {
		return zero, err
	}
	defer d.Close()

	if _, err := d.Refresh(context.Background()); err != nil {
		return zero, err
	}
	return fn(d), nil
}

// ListAudioInputDevices enumerates the devices that can record.
func ListAudioInputDevices() ([]Device, error) {
	return withFreshDetector(func(d *Detector) []Device { return d.dir.List(DirectionInput) })
}

// ListAudioOutputDevices enumerates the devices that can play.
func ListAudioOutputDevices() ([]Device, error) {
	return withFreshDetector(func(d *Detector) []Device { return d.dir.List(DirectionOutput) })
}

// ListAllAudioDevices enumerates every device.
func ListAllAudioDevices() ([]Device, error) {
	return withFreshDetector(func(d *Detector) []Device { return d.dir.Devices() })
}

// GetAudioDeviceCount counts input-capable, output-capable and all devices.
func GetAudioDeviceCount() (Counts, error) {
	return withFreshDetector(func(d *Detector) Counts { return d.dir.Count() })
}

// FindAudioDevice returns the devices whose name contains query, ignoring
// case.
func FindAudioDevice(query string) ([]Device, error) {
	return withFreshDetector(func(d *Detector) []Device { return d.dir.Find(query) })
}
