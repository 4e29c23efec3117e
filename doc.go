// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ipc is a small local inter-process messaging layer. Processes on
// one host exchange JSON envelopes over UDP on 127.0.0.1, addressing each
// other by port number.
//
// # Wire Format
//
// One JSON object per datagram, at most MaxDatagramSize bytes:
//
//	{"id": 42, "msg": "hello"}              notify / request
//	{"id": 42, "result": 0, "msg": "world"} acknowledgement
//
// The id names a message kind, not a single call. There is no framing,
// retransmission, ordering or authentication beyond what loopback UDP gives.
//
// # Usage
//
// Receiving side:
//
//	ep := ipc.NewEndpoint(ipc.WithLogger(logger))
//	ep.Register(42, func(ctx context.Context, msg *ipc.Message) {
//	    ep.Reply(msg, 0, "world")
//	})
//	if err := ep.Init(7001); err != nil {
//	    log.Fatal(err)
//	}
//	defer ep.Deinit()
//
// Sending side:
//
//	reply, err := ipc.NewRequester().Send(ctx, 7001, 42, "hello", time.Second)
//	if errors.Is(err, ipc.ErrTimeout) {
//	    // nobody answered
//	}
//
// The package-level Init, Deinit, RegisterHandler, Send and Ack functions
// drive one process-wide Endpoint and Requester.
//
// # Dispatch
//
// Each endpoint runs one receiver goroutine. By default handlers run on it
// in arrival order, so a slow handler delays every later message.
// WithHandlerQueue moves each message id onto its own worker instead.
//
// Ack answers whoever sent the most recently received datagram. Reply
// answers the sender of a specific Message and should be preferred when
// more than one peer may be talking to the endpoint.
//
// # Observability
//
// Endpoints and requesters report outcomes to an Observer; Metrics exports
// them to Prometheus. WithHealth publishes the receiver state through a
// gRPC health server, and NewBridgeHandler exposes Send to JSON-RPC 2.0
// clients over HTTP.
package ipc
