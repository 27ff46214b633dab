// SPDX-License-Identifier: MIT

// Package audiomap discovers the audio devices of the current machine and
// answers list, count and search queries over them.
//
// Every device gets a UID that stays the same across refreshes as long as
// the OS reports the same device:
//
//	d, err := audiomap.New()
//	if err != nil {
//		// *audiomap.UnsupportedPlatformError
//	}
//	inputs, err := d.ListInputDevices()
//
// The free functions (ListAudioInputDevices, GetAudioDeviceCount, ...) build
// a throwaway Detector, refresh it once and answer from that snapshot.
package audiomap

import (
	"audiomap/internal/audio"
	"audiomap/internal/events"
	"audiomap/internal/platform"
)

type (
	Device        = audio.Device
	Direction     = audio.Direction
	Counts        = audio.Counts
	Snapshot      = audio.Snapshot
	RefreshReport = audio.RefreshReport
	Details       = audio.Details
	FindOption    = audio.FindOption
	Platform      = platform.Platform

	// Adapter and RawDescriptor let callers plug in their own enumeration.
	Adapter       = audio.Adapter
	RawDescriptor = audio.RawDescriptor
)

const (
	DirectionUnknown     = audio.DirectionUnknown
	DirectionInput       = audio.DirectionInput
	DirectionOutput      = audio.DirectionOutput
	DirectionInputOutput = audio.DirectionInputOutput

	Darwin  = platform.Darwin
	Windows = platform.Windows
	Linux   = platform.Linux
	Unknown = platform.Unknown
)

// Errors. Each typed error matches errors.Is(err, ErrAudioDetection).
type (
	UnsupportedPlatformError = audio.UnsupportedPlatformError
	NativeEnumerationError   = audio.NativeEnumerationError
	NormalizationError       = audio.NormalizationError
	DirectoryRefreshError    = audio.DirectoryRefreshError
)

var (
	ErrAudioDetection = audio.ErrAudioDetection
	ErrDeviceNotFound = audio.ErrDeviceNotFound
)

// Refresh notifications delivered to Subscribe handlers.
type (
	RefreshedEvent     = events.SnapshotRefreshedEvent
	RefreshFailedEvent = events.RefreshFailedEvent
)

// CaseSensitive makes Find match names exactly instead of ignoring case.
func CaseSensitive() FindOption {
	return audio.CaseSensitive()
}
