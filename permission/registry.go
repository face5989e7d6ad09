package permission

import (
	"errors"
	"sync"
)

var (
	// ErrFrozen is returned by registrations after Freeze.
	ErrFrozen = errors.New("permission: registry frozen")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("permission: already registered")
	// ErrUnknown is returned when a role references an unregistered permission.
	ErrUnknown = errors.New("permission: not registered")
)

// Registry maps permission names to bit positions.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName []string
	frozen    bool
}

// NewRegistry returns an empty permission registry.
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Register assigns the next free bit to name and returns it.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.frozen:
		return -1, ErrFrozen
	case name == "":
		return -1, errors.New("permission: name cannot be empty")
	case len(r.bitToName) >= MaxPermissions:
		return -1, errors.New("permission: limit exceeded")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrDuplicate
	}

	bit := len(r.bitToName)
	r.nameToBit[name] = bit
	r.bitToName = append(r.bitToName, name)
	return bit, nil
}

// Bit returns the bit for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Names returns the permission names set in m, in bit order.
func (r *Registry) Names(m Mask) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for bit, name := range r.bitToName {
		if m.Has(bit) {
			out = append(out, name)
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bitToName)
}
