// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestProcessDefault(t *testing.T) {
	if err := Configure(WithLogger(zaptest.NewLogger(t))); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	port := freePort(t)
	if err := Init(port); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		_ = Deinit()
		<-Default().Done()
	})

	if err := Configure(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Configure while running: got %v, want ErrAlreadyRunning", err)
	}

	got := make(chan string, 1)
	if err := RegisterHandler(42, func(ctx context.Context, msg *Message) {
		got <- msg.Payload
		if err := Ack(42, 0, "world"); err != nil {
			t.Errorf("Ack: %v", err)
		}
	}); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	reply, err := Send(context.Background(), port, 42, "hello", time.Second)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Result != 0 || reply.Payload != "world" {
		t.Errorf("got (%d, %q), want (0, %q)", reply.Result, reply.Payload, "world")
	}
	if p := <-got; p != "hello" {
		t.Errorf("got %q, want %q", p, "hello")
	}

	if err := Deinit(); err != nil {
		t.Fatalf("Deinit: %v", err)
	}
	if err := Deinit(); err != nil {
		t.Fatalf("second Deinit: %v", err)
	}
	<-Default().Done()
	if err := Init(port); err != nil {
		t.Fatalf("Init after Deinit: %v", err)
	}
}
