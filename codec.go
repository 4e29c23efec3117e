// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Envelope is the unit carried in one datagram.
//
//	notify/request:  {"id": 42, "msg": "hello"}
//	acknowledgement: {"id": 42, "result": 0, "msg": "world"}
//
// ID names a message kind and is shared by every message of that kind.
// An empty Payload is left off the wire, and an absent "msg" decodes to an
// empty Payload, so "msg":"" and a missing "msg" are the same thing here.
// C peers that hand their callbacks NULL for a missing "msg" will see NULL,
// not "", for an empty payload sent from Go.
type Envelope struct {
	ID      int    `json:"id"`
	Result  *int   `json:"result,omitempty"`
	Payload string `json:"msg,omitempty"`
}

// IsAck reports whether the envelope carries a result code.
func (e Envelope) IsAck() bool {
	return e.Result != nil
}

// RequestEnvelope builds a notify/request envelope.
func RequestEnvelope(id int, payload string) Envelope {
	return Envelope{ID: id, Payload: payload}
}

// AckEnvelope builds an acknowledgement envelope.
func AckEnvelope(id, result int, payload string) Envelope {
	return Envelope{ID: id, Result: &result, Payload: payload}
}

// Codec encodes/decodes envelopes
type Codec interface {
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

// JSONCodec is the wire codec: one JSON object per datagram.
// Unknown fields are ignored, a non-string "msg" reads as empty and a
// missing or non-numeric "id" makes the datagram malformed.
type JSONCodec struct{}

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	// C peers sometimes send the string terminator along.
	data = bytes.TrimRight(data, "\x00")

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	rawID, ok := fields["id"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	id, ok := decodeInt(rawID)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: id is not a number", ErrMalformedMessage)
	}

	env := Envelope{ID: id}
	if raw, ok := fields["result"]; ok {
		if result, ok := decodeInt(raw); ok {
			env.Result = &result
		}
	}
	if raw, ok := fields["msg"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			env.Payload = s
		}
	}
	return env, nil
}

// decodeInt reads a JSON number as a C int would see it: fractions are
// truncated and out-of-range values saturate.
func decodeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	// Float64 only fails on range errors here and then returns ±Inf.
	f, _ := num.Float64()
	if n, err := num.Int64(); err == nil && n >= math.MinInt32 && n <= math.MaxInt32 {
		return int(n), true
	}
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt32:
		return math.MaxInt32, true
	case f <= math.MinInt32:
		return math.MinInt32, true
	}
	return int(f), true
}

// encodeLimited encodes env and enforces the datagram limit.
func encodeLimited(c Codec, env Envelope, limit int) ([]byte, error) {
	data, err := c.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if limit > 0 && len(data) > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(data), limit)
	}
	return data, nil
}
