// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthService is the service name endpoints report under.
const DefaultHealthService = "ipc"

func (e *Endpoint) setServing(serving bool) {
	if e.opts.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	e.opts.health.SetServingStatus(e.opts.healthService, status)
}

// ServeHealth serves the gRPC health protocol from hs on lis until ctx is
// cancelled.
func ServeHealth(ctx context.Context, lis net.Listener, hs *health.Server) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	stop := context.AfterFunc(ctx, func() {
		hs.Shutdown()
		srv.GracefulStop()
	})
	defer stop()

	if err := srv.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
