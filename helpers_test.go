// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// freePort returns a loopback UDP port that was free a moment ago.
func freePort(t testing.TB) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: loopback})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// startEndpoint creates and starts an endpoint, stopping it at cleanup.
func startEndpoint(t *testing.T, opts ...Option) (*Endpoint, int) {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	ep := NewEndpoint(opts...)
	port := freePort(t)
	if err := ep.Init(port); err != nil {
		t.Fatalf("Init(%d): %v", port, err)
	}
	t.Cleanup(func() {
		_ = ep.Deinit()
		<-ep.Done()
	})
	return ep, port
}

func sendRaw(t *testing.T, port int, data string) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: loopback, Port: port})
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(data)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

// recorder is an Observer that keeps everything it sees.
type recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	requests   []RequestOutcome
	acks       []error
	notify     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1)}
}

func (r *recorder) ObserveDelivery(d Delivery) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) ObserveRequest(o RequestOutcome, _ time.Duration) {
	r.mu.Lock()
	r.requests = append(r.requests, o)
	r.mu.Unlock()
}

func (r *recorder) ObserveAck(err error) {
	r.mu.Lock()
	r.acks = append(r.acks, err)
	r.mu.Unlock()
}

// waitDeliveries blocks until n deliveries were observed.
func (r *recorder) waitDeliveries(t *testing.T, n int) []Delivery {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.deliveries) >= n {
			out := append([]Delivery(nil), r.deliveries...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.notify:
		case <-timeout:
			t.Fatalf("timed out waiting for %d deliveries", n)
		}
	}
}

func countOutcomes(ds []Delivery) map[Outcome]int {
	out := make(map[Outcome]int)
	for _, d := range ds {
		out[d.Outcome]++
	}
	return out
}
