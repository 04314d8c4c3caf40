package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDataAccess is returned when a dataset is missing, unreadable or malformed.
	ErrDataAccess = errors.New("dataset access failed")
	// ErrKeyNotFound is returned by lookups that do not resolve to a stored configuration.
	ErrKeyNotFound = errors.New("configuration key not found")
	// ErrArrayNotFound is returned by containers for unknown array names.
	ErrArrayNotFound = errors.New("array not found")
)

// Container is a key-indexed store of named numeric arrays and string attributes.
type Container interface {
	ArrayNames() []string
	Array(ctx context.Context, name string) (*Array, error)
	Attr(name string) (string, bool)
	Close() error
}

// ArrayWriter is implemented by containers that can be populated.
type ArrayWriter interface {
	PutArray(name string, a *Array) error
	SetAttr(name, value string) error
}

// MemoryContainer keeps arrays in process memory.
type MemoryContainer struct {
	mu     sync.RWMutex
	arrays map[string]*Array
	attrs  map[string]string
}

// NewMemoryContainer returns an empty in-memory container.
func NewMemoryContainer() *MemoryContainer {
	return &MemoryContainer{
		arrays: make(map[string]*Array),
		attrs:  make(map[string]string),
	}
}

func (m *MemoryContainer) ArrayNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.arrays))
	for name := range m.arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MemoryContainer) Array(ctx context.Context, name string) (*Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.arrays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArrayNotFound, name)
	}
	return a, nil
}

func (m *MemoryContainer) Attr(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[name]
	return v, ok
}

func (m *MemoryContainer) PutArray(name string, a *Array) error {
	if name == "" {
		return fmt.Errorf("array name cannot be empty")
	}
	if err := a.validate(); err != nil {
		return fmt.Errorf("array %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrays[name] = &Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
	return nil
}

func (m *MemoryContainer) SetAttr(name, value string) error {
	if name == "" {
		return fmt.Errorf("attr name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs[name] = value
	return nil
}

func (m *MemoryContainer) Close() error {
	return nil
}
