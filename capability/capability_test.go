package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoleProvider(t *testing.T, assignments map[string][]string) *RoleProvider {
	t.Helper()
	reg := NewRegistry()
	for _, c := range []string{"time-tracking", "expense"} {
		_, err := reg.Register(c)
		require.NoError(t, err)
	}
	reg.Freeze()

	roles := NewRoles(reg)
	require.NoError(t, roles.Register("field-worker", []string{"time-tracking"}))
	require.NoError(t, roles.Register("traveller", []string{"expense"}))
	roles.Freeze()

	return NewRoleProvider(reg, roles, func(_ context.Context, id string) ([]string, error) {
		if id == "broken" {
			return nil, errors.New("directory offline")
		}
		return assignments[id], nil
	})
}

func TestRegistryAssignsSequentialBits(t *testing.T) {
	reg := NewRegistry()
	b0, err := reg.Register("a")
	require.NoError(t, err)
	b1, err := reg.Register("b")
	require.NoError(t, err)
	assert.Equal(t, 0, b0)
	assert.Equal(t, 1, b1)

	_, err = reg.Register("a")
	assert.ErrorIs(t, err, ErrDuplicate)

	reg.Freeze()
	_, err = reg.Register("c")
	assert.ErrorIs(t, err, ErrRegistryFrozen)

	var m Mask
	m.Set(b1)
	assert.Equal(t, []string{"b"}, reg.Names(m))
}

func TestRegistryLimit(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < MaxCapabilities; i++ {
		_, err := reg.Register(fmt.Sprintf("cap-%d", i))
		require.NoError(t, err)
	}
	_, err := reg.Register("one-too-many")
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRolesRejectUnknownCapability(t *testing.T) {
	roles := NewRoles(NewRegistry())
	err := roles.Register("admin", []string{"missing"})
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestRoleProviderUnionsRoles(t *testing.T) {
	p := newRoleProvider(t, map[string][]string{
		"u1": {"field-worker"},
		"u2": {"field-worker", "traveller"},
		"u3": {"unknown-role"},
	})
	ctx := context.Background()

	ok, err := p.HasCapability(ctx, "u1", "time-tracking")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = p.HasCapability(ctx, "u1", "expense")
	assert.False(t, ok)

	ok, _ = p.HasCapability(ctx, "u2", "expense")
	assert.True(t, ok)

	ok, _ = p.HasCapability(ctx, "u3", "expense")
	assert.False(t, ok)

	ok, err = p.HasCapability(ctx, "u1", "not-registered")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.HasCapability(ctx, "broken", "expense")
	assert.Error(t, err)
}

func TestStaticGrantRevoke(t *testing.T) {
	s := NewStatic(map[string][]string{"u1": {"expense"}})
	ok, _ := s.HasCapability(context.Background(), "u1", "expense")
	assert.True(t, ok)

	s.Revoke("u1", "expense")
	ok, _ = s.HasCapability(context.Background(), "u1", "expense")
	assert.False(t, ok)

	s.Grant("u2", "time-tracking")
	ok, _ = s.HasCapability(context.Background(), "u2", "time-tracking")
	assert.True(t, ok)
}

type countingProvider struct {
	calls int
	err   error
	value bool
}

func (c *countingProvider) HasCapability(context.Context, string, string) (bool, error) {
	c.calls++
	return c.value, c.err
}

func TestCachedMemoizesAnswers(t *testing.T) {
	inner := &countingProvider{value: true}
	c := NewCached(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := c.HasCapability(context.Background(), "u1", "expense")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.calls)

	c.Forget("u1", "expense")
	_, _ = c.HasCapability(context.Background(), "u1", "expense")
	assert.Equal(t, 2, inner.calls)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("timeout")}
	c := NewCached(inner, 16, time.Minute)

	_, err := c.HasCapability(context.Background(), "u1", "expense")
	require.Error(t, err)
	_, err = c.HasCapability(context.Background(), "u1", "expense")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, c.Len())
}
