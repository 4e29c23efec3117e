// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// dispatcher runs handlers for the receiver loop. dispatch and close are
// only ever called from the loop goroutine.
type dispatcher interface {
	// dispatch reports false when the message was dropped.
	dispatch(ctx context.Context, h Handler, msg *Message) bool
	close()
}

func newDispatcher(queueDepth int, log *zap.Logger) dispatcher {
	if queueDepth > 0 {
		return &queueDispatcher{
			depth:  queueDepth,
			log:    log,
			queues: make(map[int]chan queuedMessage),
		}
	}
	return inlineDispatcher{log: log}
}

// inlineDispatcher runs the handler on the receiver goroutine. A slow
// handler stalls every later message.
type inlineDispatcher struct {
	log *zap.Logger
}

func (d inlineDispatcher) dispatch(ctx context.Context, h Handler, msg *Message) bool {
	invoke(ctx, d.log, h, msg)
	return true
}

func (inlineDispatcher) close() {}

type queuedMessage struct {
	h   Handler
	msg *Message
}

// queueDispatcher gives every message id its own worker and bounded queue.
// Messages for one id stay ordered; a full queue drops instead of blocking.
type queueDispatcher struct {
	depth int
	log   *zap.Logger

	mu     sync.Mutex
	queues map[int]chan queuedMessage
	closed bool
	wg     sync.WaitGroup
}

func (d *queueDispatcher) dispatch(ctx context.Context, h Handler, msg *Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	q, ok := d.queues[msg.ID]
	if !ok {
		q = make(chan queuedMessage, d.depth)
		d.queues[msg.ID] = q
		d.wg.Add(1)
		go d.work(ctx, q)
	}
	select {
	case q <- queuedMessage{h: h, msg: msg}:
		return true
	default:
		return false
	}
}

func (d *queueDispatcher) work(ctx context.Context, q <-chan queuedMessage) {
	defer d.wg.Done()
	for item := range q {
		invoke(ctx, d.log, item.h, item.msg)
	}
}

// close stops accepting messages and waits for queued ones to finish.
func (d *queueDispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// invoke runs h and keeps a panicking handler from taking the loop down.
func invoke(ctx context.Context, log *zap.Logger, h Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked",
				zap.Int("id", msg.ID),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, msg)
}
