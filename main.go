package main

import (
	"os"

	"audiomap/cmd"
	applog "audiomap/internal/log"
	"audiomap/pkg/build"
)

// main wires build metadata and hands off to the CLI. Every command is a
// short-lived query except serve, which runs until SIGINT or SIGTERM.
func main() {
	// Release builds carry ldflags; anything else reports what the toolchain
	// recorded.
	if err := build.Initialize(); err != nil {
		build.InitializeFromRuntime()
		applog.Debugf("build: %v, using embedded build info", err)
	}

	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
