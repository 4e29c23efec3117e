// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sync"
	"time"
)

// The process-wide endpoint and requester behind the package-level
// functions. Processes that need more than one endpoint use Endpoint and
// Requester directly.
var (
	defaultMu        sync.RWMutex
	defaultEndpoint  = NewEndpoint()
	defaultRequester = NewRequester()
)

// Configure replaces the process-wide endpoint and requester. Handlers
// registered on the previous endpoint are discarded, so call it before
// RegisterHandler. It fails while the current endpoint is running.
func Configure(opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEndpoint.Running() {
		return ErrAlreadyRunning
	}
	defaultEndpoint = NewEndpoint(opts...)
	defaultRequester = NewRequester(opts...)
	return nil
}

// Default returns the process-wide endpoint.
func Default() *Endpoint {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEndpoint
}

func requester() *Requester {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRequester
}

// Init starts the process-wide endpoint on port.
func Init(port int) error {
	return Default().Init(port)
}

// Deinit stops the process-wide endpoint.
func Deinit() error {
	return Default().Deinit()
}

// RegisterHandler registers h for id on the process-wide endpoint.
func RegisterHandler(id int, h Handler) error {
	return Default().Register(id, h)
}

// Ack acknowledges the most recent sender on the process-wide endpoint.
func Ack(id, result int, payload string) error {
	return Default().Ack(id, result, payload)
}

// Send issues a synchronous request using the process-wide requester.
func Send(ctx context.Context, port, id int, payload string, timeout time.Duration) (Reply, error) {
	return requester().Send(ctx, port, id, payload, timeout)
}
