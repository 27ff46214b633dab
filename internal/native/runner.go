// SPDX-License-Identifier: MIT

// Package native holds the OS-specific adapters of the device directory.
// Each adapter asks the platform's own tooling for its device list
// (pactl, /proc/asound, miniaudio, system_profiler, PowerShell) and turns
// the answer into raw descriptors.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec. The context bounds how long a hung
// audio daemon can stall enumeration.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s timed out: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s exited with %d: %s", name, exitErr.ExitCode(), firstLine(msg))
			}
		}
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
