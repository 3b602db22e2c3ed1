// Package repository provides the string key-value stores backing counter state.
package repository

import (
	"context"
	"sync"
)

// KV is a string-keyed, string-valued store.
type KV interface {
	// Get returns the value and true, or "" and false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryKV is a KV held in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

// SetMany stores every pair under one lock.
func (m *MemoryKV) SetMany(_ context.Context, values map[string]string) error {
	for key := range values {
		if key == "" {
			return ErrEmptyKey
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range values {
		m.data[key] = value
	}
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
