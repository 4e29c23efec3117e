// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps message ids to handlers. Registration is append-only:
// there is no way to remove a handler once added.
type Registry struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	capacity int // 0 means unbounded
}

// NewRegistry returns a registry that accepts at most capacity handlers.
// A capacity of zero removes the bound.
func NewRegistry(capacity int) *Registry {
	if capacity < 0 {
		capacity = 0
	}
	return &Registry{
		handlers: make(map[int]Handler),
		capacity: capacity,
	}
}

// Register binds h to id.
func (r *Registry) Register(id int, h Handler) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMessageID, id)
	}
	if h == nil {
		return fmt.Errorf("ipc: nil handler for message id %d", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	if r.capacity > 0 && len(r.handlers) >= r.capacity {
		return fmt.Errorf("%w: %d handlers", ErrRegistryFull, r.capacity)
	}
	r.handlers[id] = h
	return nil
}

// Lookup returns the handler bound to id.
func (r *Registry) Lookup(id int) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// IDs returns the registered message ids in ascending order
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
