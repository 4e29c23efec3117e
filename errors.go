// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import "errors"

var (
	ErrInvalidPort       = errors.New("ipc: port out of range")
	ErrSocket            = errors.New("ipc: socket error")
	ErrAlreadyRunning    = errors.New("ipc: endpoint already running")
	ErrNotRunning        = errors.New("ipc: endpoint not running")
	ErrNoPeer            = errors.New("ipc: no peer to acknowledge")
	ErrInvalidMessageID  = errors.New("ipc: message id must be positive")
	ErrAlreadyRegistered = errors.New("ipc: message id already registered")
	ErrRegistryFull      = errors.New("ipc: handler registry full")
	ErrTimeout           = errors.New("ipc: request timeout")
	ErrMalformedMessage  = errors.New("ipc: malformed message")
	ErrMessageTooLarge   = errors.New("ipc: message exceeds maximum datagram size")
)

// ResultFailure is the result code reported when no acknowledgement result
// was received.
const ResultFailure = -1

// ValidPort reports whether port is usable as a loopback IPC address.
func ValidPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}
