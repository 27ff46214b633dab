// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	applog "audiomap/internal/log"
	"audiomap/internal/transport"
	"audiomap/internal/transport/udp"
	"audiomap/pkg/audiomap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCommand(c *cli) *cobra.Command {
	var addr, udpTarget string
	var udpEnabled bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over HTTP and WebSocket",
		Long: `Serve the device directory.

  GET  /devices[?direction=input|output|input_output]
  POST /refresh
  GET  /metrics
       /ws     pushes a snapshot on connect and after every refresh;
               send {"type":"refresh"} to request one

Discovery only runs at startup and when a client asks for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				c.cfg.Server.Addr = addr
			}
			if flags.Changed("udp") {
				c.cfg.Server.UDPEnabled = udpEnabled
			}
			if flags.Changed("udp-target") {
				c.cfg.Server.UDPTarget = udpTarget
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8090)")
	serveCmd.Flags().BoolVar(&udpEnabled, "udp", false, "Announce snapshots over UDP")
	serveCmd.Flags().StringVar(&udpTarget, "udp-target", "", "UDP announce target host:port")
	return serveCmd
}

// serve runs until ctx is cancelled.
func (c *cli) serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	det, err := c.detector(audiomap.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer det.Close()

	ws := transport.NewWebSocketTransport()
	ws.Greeting = func() any { return transport.SnapshotMessage(det.Snapshot()) }

	refreshRequests := make(chan struct{}, 1)
	ws.OnMessage = func(m transport.ClientMessage) {
		if m.Type != "refresh" {
			return
		}
		select {
		case refreshRequests <- struct{}{}:
		default:
		}
	}

	fanout := transport.Fanout{ws, transport.NewLoggingTransport()}
	if c.cfg.Server.UDPEnabled {
		sender, err := udp.NewUDPSender(c.cfg.Server.UDPTarget)
		if err != nil {
			ws.Close()
			return err
		}
		announcer, err := udp.NewAnnouncer(c.cfg.Server.UDPInterval, sender)
		if err != nil {
			sender.Close()
			ws.Close()
			return err
		}
		announcer.Start()
		fanout = append(fanout, announcer)
	}
	defer fanout.Close()

	defer det.Subscribe(func(e audiomap.RefreshedEvent) {
		if err := fanout.Send(transport.SnapshotMessage(det.Snapshot())); err != nil {
			applog.Warnf("serve: push snapshot %d: %v", e.Generation, err)
		}
	})()
	defer det.Subscribe(func(e audiomap.RefreshFailedEvent) {
		if err := fanout.Send(transport.FailureMessage(e.Generation, e.Error)); err != nil {
			applog.Warnf("serve: push failure: %v", err)
		}
	})()

	srv := transport.NewServer(c.cfg.Server.Addr, det, ws, reg)
	if err := srv.Start(); err != nil {
		return err
	}

	if _, err := det.Refresh(ctx); err != nil {
		applog.Warnf("serve: initial refresh failed: %v", err)
	}

	for {
		select {
		case <-refreshRequests:
			if _, err := det.Refresh(ctx); err != nil {
				applog.Warnf("serve: refresh failed: %v", err)
			}
		case <-ctx.Done():
			applog.Infof("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
