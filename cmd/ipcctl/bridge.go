// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
)

func newBridgeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve IPC.Send over JSON-RPC 2.0 and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") || cfg.BridgeAddr == "" {
				cfg.BridgeAddr = listen
			}

			reg := prometheus.NewRegistry()
			metrics, err := ipc.NewMetrics(reg)
			if err != nil {
				return err
			}
			req := ipc.NewRequester(append(cfg.Options(),
				ipc.WithLogger(logger),
				ipc.WithObserver(metrics),
			)...)
			handler, err := ipc.NewBridgeHandler(req)
			if err != nil {
				return err
			}

			mux := metricsMux(reg)
			mux.Handle("/rpc", handler)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveHTTP(runCtx, logger, cfg.BridgeAddr, mux)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:7070", "HTTP listen address")
	return cmd
}
