// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/luxfi/ipc"
)

func newListenCommand(ctx *commandContext) *cobra.Command {
	var port int
	var echoIDs []int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run an endpoint, logging incoming messages and echoing --echo ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cfg.Port == 0 {
				return errors.New("listen: --port or port in config is required")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListener(runCtx, cfg, logger, echoIDs)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to bind on 127.0.0.1")
	cmd.Flags().IntSliceVar(&echoIDs, "echo", nil, "Message ids to acknowledge with result 0 and the same payload")
	return cmd
}

func runListener(ctx context.Context, cfg ipc.Config, logger *zap.Logger, echoIDs []int) error {
	reg := prometheus.NewRegistry()
	metrics, err := ipc.NewMetrics(reg)
	if err != nil {
		return err
	}
	hs := health.NewServer()

	opts := append(cfg.Options(),
		ipc.WithLogger(logger),
		ipc.WithObserver(&loggingObserver{Observer: metrics, log: logger}),
		ipc.WithHealth(hs, ipc.DefaultHealthService),
	)
	ep := ipc.NewEndpoint(opts...)

	for _, id := range echoIDs {
		if err := ep.Register(id, echoHandler(ep, logger)); err != nil {
			return fmt.Errorf("register %d: %w", id, err)
		}
	}

	if err := ep.Init(cfg.Port); err != nil {
		return err
	}
	logger.Info("listening",
		zap.Int("port", cfg.Port),
		zap.Ints("echo", ep.Registry().IDs()),
	)
	defer func() {
		_ = ep.Deinit()
		<-ep.Done()
	}()

	errCh := make(chan error, 2)
	if cfg.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			return fmt.Errorf("health listener: %w", err)
		}
		logger.Info("serving health", zap.String("addr", lis.Addr().String()))
		go func() { errCh <- ipc.ServeHealth(ctx, lis, hs) }()
	}
	if cfg.MetricsAddr != "" {
		go func() { errCh <- serveHTTP(ctx, logger, cfg.MetricsAddr, metricsMux(reg)) }()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func echoHandler(ep *ipc.Endpoint, logger *zap.Logger) ipc.Handler {
	return func(ctx context.Context, msg *ipc.Message) {
		logger.Info("message",
			zap.Int("id", msg.ID),
			zap.String("msg", msg.Payload),
			zap.Stringer("peer", msg.Peer),
		)
		if err := ep.Reply(msg, 0, msg.Payload); err != nil {
			logger.Warn("echo failed", zap.Int("id", msg.ID), zap.Error(err))
		}
	}
}

// loggingObserver logs messages that no handler consumed and forwards every
// observation to the wrapped Observer.
type loggingObserver struct {
	ipc.Observer
	log *zap.Logger
}

func (o *loggingObserver) ObserveDelivery(d ipc.Delivery) {
	switch d.Outcome {
	case ipc.OutcomeNoHandler:
		o.log.Info("message",
			zap.Int("id", d.ID),
			zap.Stringer("peer", d.Peer),
			zap.Int("size", d.Size),
		)
	case ipc.OutcomeMalformed:
		o.log.Info("malformed datagram",
			zap.Stringer("peer", d.Peer),
			zap.Int("size", d.Size),
			zap.Error(d.Err),
		)
	}
	o.Observer.ObserveDelivery(d)
}
