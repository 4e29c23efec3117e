// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
)

const (
	// MinPort and MaxPort bound the loopback ports an endpoint may use.
	MinPort = 1
	MaxPort = 65534

	// DefaultTimeout applies when Send is given a non-positive timeout.
	DefaultTimeout = 700 * time.Millisecond

	// MaxDatagramSize is the receive buffer size. Longer datagrams are
	// truncated by the transport before decoding.
	MaxDatagramSize = 32 * 1024

	// DefaultRegistryCapacity is the number of handlers an endpoint accepts.
	DefaultRegistryCapacity = 64
)

// Handler handles one inbound notify or request envelope.
// The context is cancelled when the owning endpoint is deinitialized.
type Handler func(ctx context.Context, msg *Message)

// Message is a decoded inbound envelope plus its transport metadata.
type Message struct {
	ID         int
	Payload    string
	Peer       *net.UDPAddr
	ReceivedAt time.Time
}

// Reply is the outcome of a synchronous Send.
type Reply struct {
	// Result is the acknowledgement result code, or ResultFailure when the
	// reply carried none.
	Result    int
	HasResult bool
	Payload   string
}

// Option configures an Endpoint or a Requester.
type Option func(*options)

type options struct {
	codec         Codec
	logger        *zap.Logger
	observer      Observer
	health        *health.Server
	healthService string
	capacity      int
	maxDatagram   int
	queueDepth    int
	timeout       time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		codec:       JSONCodec{},
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		capacity:    DefaultRegistryCapacity,
		maxDatagram: MaxDatagramSize,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom envelope codec
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger used for lifecycle and dropped-message events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver receives delivery, request and acknowledgement outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithHealth publishes the receiver loop state under service on hs.
func WithHealth(hs *health.Server, service string) Option {
	return func(o *options) {
		o.health = hs
		o.healthService = service
	}
}

// WithRegistryCapacity bounds the number of registered handlers.
// Zero removes the bound.
func WithRegistryCapacity(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.capacity = n
		}
	}
}

// WithMaxDatagram sets the receive buffer and encode limit in bytes.
func WithMaxDatagram(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDatagram = n
		}
	}
}

// WithHandlerQueue hands each message id its own worker goroutine fed by a
// queue of the given depth, so a slow handler only delays its own id.
// Zero keeps dispatch on the receiver goroutine.
func WithHandlerQueue(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.queueDepth = depth
		}
	}
}

// WithDefaultTimeout replaces DefaultTimeout for a Requester.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
