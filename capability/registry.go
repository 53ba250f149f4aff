package capability

import (
	"errors"
	"sync"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("capability registry frozen")
	// ErrDuplicate is returned for a name or role registered twice.
	ErrDuplicate = errors.New("capability already registered")
	// ErrLimitExceeded is returned when all mask bits are assigned.
	ErrLimitExceeded = errors.New("capability limit exceeded")
	// ErrUnknownCapability is returned when a role names an unregistered capability.
	ErrUnknownCapability = errors.New("capability not registered")
)

// Registry maps capability names to bit positions within a [Mask].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// Register assigns the next free bit to name.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrRegistryFrozen
	}
	if name == "" {
		return -1, errors.New("capability name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrDuplicate
	}

	next := len(r.nameToBit)
	if next >= MaxCapabilities {
		return -1, ErrLimitExceeded
	}

	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Names lists the capability names set in m, in bit order.
func (r *Registry) Names(m Mask) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bitToName))
	for bit := 0; bit < MaxCapabilities; bit++ {
		if !m.Has(bit) {
			continue
		}
		if name, ok := r.bitToName[bit]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
