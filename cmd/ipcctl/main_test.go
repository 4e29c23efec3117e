// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luxfi/ipc"
)

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestSendCommand(t *testing.T) {
	ep := ipc.NewEndpoint()
	if err := ep.Register(5, func(ctx context.Context, msg *ipc.Message) {
		_ = ep.Reply(msg, 0, "pong")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	port := freePort(t)
	if err := ep.Init(port); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ep.Deinit()

	out, err := runRoot(t, "send", "--port", strconv.Itoa(port), "--id", "5", "--msg", "ping", "--timeout-ms", "1000")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if want := `result=0 msg="pong"`; !strings.Contains(out, want) {
		t.Errorf("got %q, want it to contain %q", out, want)
	}
}

func TestSendCommandTimeout(t *testing.T) {
	_, err := runRoot(t, "send", "--port", strconv.Itoa(freePort(t)), "--id", "1", "--timeout-ms", "50")
	if !errors.Is(err, ipc.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestLogLevelFlagOverridesEnv(t *testing.T) {
	t.Setenv(ipc.EnvLogLevel, "loud")
	_, err := runRoot(t, "send", "--port", strconv.Itoa(freePort(t)), "--id", "1", "--timeout-ms", "50")
	if !errors.Is(err, ipc.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout once --log-level replaces the env value", err)
	}
}

func TestListenEcho(t *testing.T) {
	cfg := ipc.DefaultConfig()
	cfg.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runListener(ctx, cfg, zaptest.NewLogger(t), []int{3}) }()

	req := ipc.NewRequester()
	var reply ipc.Reply
	var err error
	// The listener binds asynchronously; retry until it answers.
	for i := 0; i < 20; i++ {
		reply, err = req.Send(context.Background(), cfg.Port, 3, "echo me", 100*time.Millisecond)
		if err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Result != 0 || reply.Payload != "echo me" {
		t.Errorf("got (%d, %q), want (0, %q)", reply.Result, reply.Payload, "echo me")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runListener: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

type countingObserver struct {
	ipc.Observer
	deliveries int
}

func (c *countingObserver) ObserveDelivery(ipc.Delivery) { c.deliveries++ }

func TestListenLogsUnhandled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inner := &countingObserver{}
	o := &loggingObserver{Observer: inner, log: zap.New(core)}

	peer := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	o.ObserveDelivery(ipc.Delivery{Outcome: ipc.OutcomeNoHandler, ID: 9, Peer: peer, Size: 9})
	o.ObserveDelivery(ipc.Delivery{Outcome: ipc.OutcomeDispatched, ID: 3, Peer: peer, Size: 8})
	o.ObserveDelivery(ipc.Delivery{Outcome: ipc.OutcomeMalformed, Peer: peer, Size: 7, Err: ipc.ErrMalformedMessage})

	entries := logs.FilterMessage("message").All()
	if len(entries) != 1 {
		t.Fatalf("message entries: got %d, want 1", len(entries))
	}
	if id := entries[0].ContextMap()["id"]; id != int64(9) {
		t.Errorf("logged id: got %v, want 9", id)
	}
	if n := logs.FilterMessage("malformed datagram").Len(); n != 1 {
		t.Errorf("malformed entries: got %d, want 1", n)
	}
	if inner.deliveries != 3 {
		t.Errorf("forwarded deliveries: got %d, want 3", inner.deliveries)
	}
}
