// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxReceiveErrors is how many consecutive receive failures the loop
// tolerates before giving up on the socket.
const maxReceiveErrors = 16

var loopback = net.IPv4(127, 0, 0, 1)

// Endpoint owns one bound loopback socket, the receiver loop reading from
// it and the handler registry the loop dispatches to. The zero value is not
// usable; create endpoints with NewEndpoint.
type Endpoint struct {
	opts     *options
	log      *zap.Logger
	registry *Registry

	mu       sync.Mutex
	conn     *net.UDPConn
	lastPeer *net.UDPAddr
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEndpoint creates a stopped endpoint.
func NewEndpoint(opts ...Option) *Endpoint {
	o := newOptions(opts)
	return &Endpoint{
		opts:     o,
		log:      o.logger.Named("ipc"),
		registry: NewRegistry(o.capacity),
	}
}

// Init binds 127.0.0.1:port and starts the receiver loop.
func (e *Endpoint) Init(port int) error {
	if !ValidPort(port) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return fmt.Errorf("%w: bound to %s", ErrAlreadyRunning, e.conn.LocalAddr())
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: loopback, Port: port})
	if err != nil {
		return fmt.Errorf("%w: bind port %d: %v", ErrSocket, port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.conn = conn
	e.lastPeer = nil
	e.cancel = cancel
	e.done = done
	go e.receiveLoop(ctx, conn, done)

	e.setServing(true)
	e.log.Info("endpoint started", zap.Int("port", port))
	return nil
}

// Deinit stops the receiver loop and releases the socket. It does not wait
// for the loop to exit; use Done for that. Calling Deinit on a stopped
// endpoint is a no-op.
func (e *Endpoint) Deinit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, cancel := e.conn, e.cancel
	if conn == nil {
		return nil
	}
	cancel()
	// Release the port before the endpoint reads as stopped.
	err := conn.Close()
	e.conn = nil
	e.cancel = nil
	e.lastPeer = nil
	e.setServing(false)
	e.log.Info("endpoint stopped", zap.Stringer("addr", conn.LocalAddr()))
	if err != nil {
		return fmt.Errorf("%w: close: %v", ErrSocket, err)
	}
	return nil
}

// abandon tears the endpoint down after its receiver loop gave up on conn.
// It does nothing if conn was already replaced or released.
func (e *Endpoint) abandon(conn *net.UDPConn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != conn {
		return
	}
	e.cancel()
	_ = conn.Close()
	e.conn = nil
	e.cancel = nil
	e.lastPeer = nil
	e.setServing(false)
}

// Register binds h to message id. See Registry.Register.
func (e *Endpoint) Register(id int, h Handler) error {
	return e.registry.Register(id, h)
}

// Registry exposes the handler table.
func (e *Endpoint) Registry() *Registry {
	return e.registry
}

// Running reports whether the endpoint is bound.
func (e *Endpoint) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// Addr returns the bound address, or nil when stopped.
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr()
}

// Done is closed once the most recently started receiver loop has exited
// and its queued handlers have finished.
func (e *Endpoint) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return e.done
}

// Ack sends an acknowledgement to the sender of the most recently received
// datagram. If another datagram arrived after the one being answered, the
// acknowledgement goes to that newer sender; Reply avoids this.
func (e *Endpoint) Ack(id, result int, payload string) error {
	e.mu.Lock()
	conn, peer := e.conn, e.lastPeer
	e.mu.Unlock()

	if conn == nil {
		return ErrNotRunning
	}
	if peer == nil {
		return ErrNoPeer
	}
	return e.sendAck(conn, peer, AckEnvelope(id, result, payload))
}

// Reply acknowledges msg to the address it came from.
func (e *Endpoint) Reply(msg *Message, result int, payload string) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()

	if conn == nil {
		return ErrNotRunning
	}
	if msg == nil || msg.Peer == nil {
		return ErrNoPeer
	}
	return e.sendAck(conn, msg.Peer, AckEnvelope(msg.ID, result, payload))
}

func (e *Endpoint) sendAck(conn *net.UDPConn, peer *net.UDPAddr, env Envelope) (err error) {
	defer func() { e.opts.observer.ObserveAck(err) }()

	data, err := encodeLimited(e.opts.codec, env, e.opts.maxDatagram)
	if err != nil {
		return err
	}
	if _, err = conn.WriteToUDP(data, peer); err != nil {
		e.log.Warn("ack send failed",
			zap.Int("id", env.ID),
			zap.Stringer("peer", peer),
			zap.Error(err),
		)
		return fmt.Errorf("%w: ack to %s: %v", ErrSocket, peer, err)
	}
	return nil
}

func (e *Endpoint) receiveLoop(ctx context.Context, conn *net.UDPConn, done chan struct{}) {
	defer close(done)
	d := newDispatcher(e.opts.queueDepth, e.log)
	defer d.close()

	buf := make([]byte, e.opts.maxDatagram)
	failures := 0
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			if failures >= maxReceiveErrors {
				e.log.Error("receiver loop giving up", zap.Error(err))
				e.abandon(conn)
				return
			}
			e.log.Warn("receive failed", zap.Error(err))
			continue
		}
		failures = 0
		e.recordPeer(conn, peer)
		e.deliver(ctx, d, buf[:n], peer)
	}
}

// recordPeer updates the last peer unless conn has since been replaced.
func (e *Endpoint) recordPeer(conn *net.UDPConn, peer *net.UDPAddr) {
	e.mu.Lock()
	if e.conn == conn {
		e.lastPeer = peer
	}
	e.mu.Unlock()
}

func (e *Endpoint) deliver(ctx context.Context, d dispatcher, data []byte, peer *net.UDPAddr) {
	delivery := Delivery{Peer: peer, Size: len(data)}
	defer func() { e.opts.observer.ObserveDelivery(delivery) }()

	env, err := e.opts.codec.Decode(data)
	if err != nil {
		delivery.Outcome = OutcomeMalformed
		delivery.Err = err
		e.log.Debug("dropping malformed datagram", zap.Stringer("peer", peer), zap.Error(err))
		return
	}
	delivery.ID = env.ID

	h, ok := e.registry.Lookup(env.ID)
	if !ok {
		delivery.Outcome = OutcomeNoHandler
		e.log.Debug("no handler", zap.Int("id", env.ID), zap.Stringer("peer", peer))
		return
	}

	msg := &Message{
		ID:         env.ID,
		Payload:    env.Payload,
		Peer:       peer,
		ReceivedAt: time.Now(),
	}
	if !d.dispatch(ctx, h, msg) {
		delivery.Outcome = OutcomeDropped
		e.log.Warn("handler queue full, dropping message", zap.Int("id", env.ID))
		return
	}
	delivery.Outcome = OutcomeDispatched
}
