package capability

import (
	"context"
	"fmt"
	"sync"
)

// Provider answers whether a principal holds a named capability.
type Provider interface {
	HasCapability(ctx context.Context, principalID, capability string) (bool, error)
}

// RoleLookup returns the role names assigned to principalID.
type RoleLookup func(ctx context.Context, principalID string) ([]string, error)

// RoleProvider resolves capabilities through role membership. Unknown roles and
// unregistered capabilities read as not held.
type RoleProvider struct {
	registry *Registry
	roles    *Roles
	lookup   RoleLookup
}

// NewRoleProvider returns a RoleProvider. registry and roles should be frozen.
func NewRoleProvider(registry *Registry, roles *Roles, lookup RoleLookup) *RoleProvider {
	return &RoleProvider{registry: registry, roles: roles, lookup: lookup}
}

// MaskFor returns the union mask of every role held by principalID.
func (p *RoleProvider) MaskFor(ctx context.Context, principalID string) (Mask, error) {
	names, err := p.lookup(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("role lookup: %w", err)
	}
	var mask Mask
	for _, n := range names {
		if m, ok := p.roles.Mask(n); ok {
			mask = mask.Union(m)
		}
	}
	return mask, nil
}

// HasCapability implements [Provider].
func (p *RoleProvider) HasCapability(ctx context.Context, principalID, capability string) (bool, error) {
	bit, ok := p.registry.Bit(capability)
	if !ok {
		return false, nil
	}
	mask, err := p.MaskFor(ctx, principalID)
	if err != nil {
		return false, err
	}
	return mask.Has(bit), nil
}

// Static is a fixed principal to capability table, safe for concurrent use.
type Static struct {
	mu     sync.RWMutex
	grants map[string]map[string]struct{}
}

// NewStatic builds a Static from principal -> capabilities.
func NewStatic(grants map[string][]string) *Static {
	s := &Static{grants: make(map[string]map[string]struct{}, len(grants))}
	for principal, caps := range grants {
		s.Grant(principal, caps...)
	}
	return s
}

// Grant adds capabilities to principalID.
func (s *Static) Grant(principalID string, capabilities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[principalID]
	if !ok {
		set = make(map[string]struct{}, len(capabilities))
		s.grants[principalID] = set
	}
	for _, c := range capabilities {
		set[c] = struct{}{}
	}
}

// Revoke removes capabilities from principalID.
func (s *Static) Revoke(principalID string, capabilities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range capabilities {
		delete(s.grants[principalID], c)
	}
}

// HasCapability implements [Provider].
func (s *Static) HasCapability(_ context.Context, principalID, capability string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[principalID][capability]
	return ok, nil
}
