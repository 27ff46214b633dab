// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

// ErrAudioDetection is the root of every detection failure. All error types
// in this file report true for errors.Is(err, ErrAudioDetection).
var ErrAudioDetection = errors.New("audio detection error")

// ErrDeviceNotFound is returned when a UID is not in the current snapshot.
var ErrDeviceNotFound = errors.New("device not found")

// UnsupportedPlatformError means the running OS has no native adapter.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q: no native audio adapter", e.GOOS)
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrAudioDetection
}

// NativeEnumerationError means the OS audio subsystem call itself failed.
// Finding zero devices is not an error.
type NativeEnumerationError struct {
	Backend string
	Err     error
}

func (e *NativeEnumerationError) Error() string {
	return fmt.Sprintf("%s: native enumeration failed: %v", e.Backend, e.Err)
}

func (e *NativeEnumerationError) Unwrap() error {
	return e.Err
}

func (e *NativeEnumerationError) Is(target error) bool {
	return target == ErrAudioDetection
}

// NormalizationError means one raw descriptor was malformed. The directory
// drops the descriptor and keeps going.
type NormalizationError struct {
	Index  int    // position of the descriptor in the adapter's output
	Field  string // "name" or "direction"
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("descriptor %d: invalid %s: %s", e.Index, e.Field, e.Reason)
}

func (e *NormalizationError) Is(target error) bool {
	return target == ErrAudioDetection
}

// DirectoryRefreshError is what callers see when a refresh could not build a
// new snapshot. The previous snapshot, if any, is still being served.
type DirectoryRefreshError struct {
	Generation uint64 // generation still being served
	Err        error
}

func (e *DirectoryRefreshError) Error() string {
	if e.Generation == 0 {
		return fmt.Sprintf("directory refresh failed, no snapshot available: %v", e.Err)
	}
	return fmt.Sprintf("directory refresh failed, serving snapshot %d: %v", e.Generation, e.Err)
}

func (e *DirectoryRefreshError) Unwrap() error {
	return e.Err
}

func (e *DirectoryRefreshError) Is(target error) bool {
	return target == ErrAudioDetection
}
