// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Requester sends requests and waits for a single reply.
//
// Every Send opens its own ephemeral socket and accepts the first datagram
// that arrives on it. Concurrent calls are safe only because the sockets are
// independent: replies are not correlated by message id.
type Requester struct {
	opts *options
	log  *zap.Logger
}

// NewRequester creates a Requester.
func NewRequester(opts ...Option) *Requester {
	o := newOptions(opts)
	return &Requester{
		opts: o,
		log:  o.logger.Named("ipc"),
	}
}

// Send delivers {id, payload} to the endpoint bound to 127.0.0.1:port and
// waits up to timeout for its acknowledgement. A non-positive timeout uses
// the requester's default. On timeout Send returns ErrTimeout and a Reply
// whose Result is ResultFailure. A reply that cannot be decoded is dropped
// and reported as ResultFailure without an error.
func (r *Requester) Send(ctx context.Context, port, id int, payload string, timeout time.Duration) (Reply, error) {
	reply := Reply{Result: ResultFailure}
	if !ValidPort(port) {
		return reply, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if timeout <= 0 {
		timeout = r.opts.timeout
	}

	start := time.Now()
	outcome := RequestFailed
	defer func() { r.opts.observer.ObserveRequest(outcome, time.Since(start)) }()

	data, err := encodeLimited(r.opts.codec, RequestEnvelope(id, payload), r.opts.maxDatagram)
	if err != nil {
		return reply, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: loopback})
	if err != nil {
		return reply, fmt.Errorf("%w: open request socket: %v", ErrSocket, err)
	}
	defer conn.Close()

	target := &net.UDPAddr{IP: loopback, Port: port}
	if _, err := conn.WriteToUDP(data, target); err != nil {
		// Best effort: a lost request surfaces as a timeout.
		r.log.Debug("request send failed", zap.Int("port", port), zap.Int("id", id), zap.Error(err))
	}

	deadline := start.Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return reply, fmt.Errorf("%w: set deadline: %v", ErrSocket, err)
	}
	// Unblock the read early when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, r.opts.maxDatagram)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			outcome = RequestCancelled
			return reply, ctxErr
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			outcome = RequestTimeout
			return reply, fmt.Errorf("%w: port %d id %d after %s", ErrTimeout, port, id, timeout)
		}
		return reply, fmt.Errorf("%w: receive: %v", ErrSocket, err)
	}

	env, err := r.opts.codec.Decode(buf[:n])
	if err != nil {
		outcome = RequestMalformed
		r.log.Debug("dropping malformed reply", zap.Int("port", port), zap.Int("id", id), zap.Error(err))
		return reply, nil
	}

	reply.Payload = env.Payload
	if env.IsAck() {
		reply.Result = *env.Result
		reply.HasResult = true
		outcome = RequestAcked
	} else {
		outcome = RequestNoResult
	}
	return reply, nil
}
