// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"net"
	"time"
)

// Outcome classifies what the receiver loop did with one datagram.
type Outcome uint8

const (
	OutcomeDispatched Outcome = iota
	OutcomeNoHandler
	OutcomeMalformed
	OutcomeDropped // handler queue full
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeNoHandler:
		return "no_handler"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Delivery describes one inbound datagram.
type Delivery struct {
	Outcome Outcome
	ID      int // zero when malformed
	Peer    *net.UDPAddr
	Size    int
	Err     error
}

// RequestOutcome classifies how a Send call ended.
type RequestOutcome uint8

const (
	RequestAcked     RequestOutcome = iota // reply carried a result
	RequestNoResult                        // reply decoded but had no result
	RequestMalformed                       // reply could not be decoded
	RequestTimeout
	RequestCancelled
	RequestFailed // socket or encode failure
)

func (o RequestOutcome) String() string {
	switch o {
	case RequestAcked:
		return "acked"
	case RequestNoResult:
		return "no_result"
	case RequestMalformed:
		return "malformed"
	case RequestTimeout:
		return "timeout"
	case RequestCancelled:
		return "cancelled"
	case RequestFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer is told about every delivery, request and acknowledgement.
// Deliveries are reported from the receiver goroutine, so implementations
// must not block.
type Observer interface {
	ObserveDelivery(d Delivery)
	ObserveRequest(outcome RequestOutcome, elapsed time.Duration)
	ObserveAck(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveDelivery(Delivery)                     {}
func (nopObserver) ObserveRequest(RequestOutcome, time.Duration) {}
func (nopObserver) ObserveAck(error)                             {}
