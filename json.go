// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

// BridgeMethod is the JSON-RPC method served by the bridge.
const BridgeMethod = "IPC.Send"

// errCodeTimeout marks a bridged request that timed out.
const errCodeTimeout json2.ErrorCode = -32001

const (
	maxRetries    = 3
	retryBaseWait = 100 * time.Millisecond
)

// SendArgs are the parameters of IPC.Send.
type SendArgs struct {
	Port      int    `json:"port"`
	ID        int    `json:"id"`
	Msg       string `json:"msg,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// SendReply is the result of IPC.Send.
type SendReply struct {
	Result    int    `json:"result"`
	HasResult bool   `json:"hasResult"`
	Msg       string `json:"msg,omitempty"`
}

// BridgeService exposes a Requester to JSON-RPC 2.0 callers over HTTP, for
// tools that cannot speak the datagram protocol themselves.
type BridgeService struct {
	requester *Requester
}

// Send forwards one request to a local endpoint.
func (s *BridgeService) Send(r *http.Request, args *SendArgs, reply *SendReply) error {
	timeout := time.Duration(args.TimeoutMs) * time.Millisecond
	res, err := s.requester.Send(r.Context(), args.Port, args.ID, args.Msg, timeout)
	if err != nil {
		code := json2.E_SERVER
		if errors.Is(err, ErrTimeout) {
			code = errCodeTimeout
		}
		return &json2.Error{Code: code, Message: err.Error()}
	}
	reply.Result = res.Result
	reply.HasResult = res.HasResult
	reply.Msg = res.Payload
	return nil
}

// NewBridgeHandler returns an http.Handler serving BridgeMethod.
func NewBridgeHandler(req *Requester) (http.Handler, error) {
	if req == nil {
		req = NewRequester()
	}
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&BridgeService{requester: req}, "IPC"); err != nil {
		return nil, fmt.Errorf("register bridge service: %w", err)
	}
	return s, nil
}

// BridgeClient calls a bridge over HTTP.
type BridgeClient struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewBridgeClient creates a client for the bridge served at url.
func NewBridgeClient(url string, log *zap.Logger) *BridgeClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &BridgeClient{
		url: url,
		// No connection reuse: bridge calls are rare and short-lived.
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		log: log.Named("bridge"),
	}
}

// Send issues IPC.Send. A bridged timeout is returned as ErrTimeout. Only
// connection failures are retried, so the bridge forwards at most one request.
func (c *BridgeClient) Send(ctx context.Context, args SendArgs) (SendReply, error) {
	var reply SendReply
	body, err := json2.EncodeClientRequest(BridgeMethod, &args)
	if err != nil {
		return reply, fmt.Errorf("failed to encode client params: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return reply, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return reply, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.log.Debug("bridge request failed",
				zap.Int("attempt", attempt+1),
				zap.Bool("retryable", isRetryableError(err)),
				zap.Error(err),
			)
			if isRetryableError(err) {
				continue
			}
			return reply, fmt.Errorf("failed to issue request: %w", err)
		}

		// JSON-RPC errors may arrive with a non-2xx status; only give up
		// on the status when the body is not a JSON-RPC response.
		isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
		if !isJSON && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			cleanlyCloseBody(resp.Body)
			return reply, fmt.Errorf("received status code: %d", resp.StatusCode)
		}
		err = json2.DecodeClientResponse(resp.Body, &reply)
		cleanlyCloseBody(resp.Body)
		if err != nil {
			var rpcErr *json2.Error
			if errors.As(err, &rpcErr) && rpcErr.Code == errCodeTimeout {
				return SendReply{Result: ResultFailure}, fmt.Errorf("%w: %s", ErrTimeout, rpcErr.Message)
			}
			return reply, fmt.Errorf("failed to decode client response: %w", err)
		}
		return reply, nil
	}
	return reply, fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// cleanlyCloseBody drains and closes an HTTP response body.
func cleanlyCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// isRetryableError reports whether err happened before the request reached
// the bridge. Failures after that point may already have been forwarded, so
// retrying them could deliver the IPC request twice.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
