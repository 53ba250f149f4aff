package capability

import (
	"errors"
	"fmt"
	"sync"
)

// Roles composes registered capabilities into named role masks.
type Roles struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask
	frozen bool
}

// NewRoles returns an empty role set backed by registry.
func NewRoles(registry *Registry) *Roles {
	return &Roles{
		registry: registry,
		roles:    make(map[string]Mask),
	}
}

// Register defines role as the union of capabilities.
func (rs *Roles) Register(role string, capabilities []string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen {
		return ErrRegistryFrozen
	}
	if role == "" {
		return errors.New("role name empty")
	}
	if _, exists := rs.roles[role]; exists {
		return ErrDuplicate
	}

	var mask Mask
	for _, c := range capabilities {
		bit, ok := rs.registry.Bit(c)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCapability, c)
		}
		mask.Set(bit)
	}

	rs.roles[role] = mask
	return nil
}

// Mask returns the mask for role.
func (rs *Roles) Mask(role string) (Mask, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	m, ok := rs.roles[role]
	return m, ok
}

// Freeze prevents further registrations.
func (rs *Roles) Freeze() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.frozen = true
}

// Count returns the number of registered roles.
func (rs *Roles) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.roles)
}
