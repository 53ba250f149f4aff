// Package storetest holds the behavioral suite every pinauth.CredentialStore
// implementation must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is the full contract exercised by Run.
type Store interface {
	pinauth.CredentialStore
	pinauth.AtomicFailureRecorder
	pinauth.SuccessRecorder
}

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// Run executes the suite. newStore must return an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("GetUnknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "nobody")
		assert.ErrorIs(t, err, pinauth.ErrCredentialNotFound)
	})

	t.Run("MutatorsOnUnknown", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.IncrementFailedAttempts(ctx, "nobody")
		assert.ErrorIs(t, err, pinauth.ErrCredentialNotFound)
		assert.ErrorIs(t, s.Deactivate(ctx, "nobody"), pinauth.ErrCredentialNotFound)
		_, _, err = s.RecordFailure(ctx, "nobody", 5, base)
		assert.ErrorIs(t, err, pinauth.ErrCredentialNotFound)
	})

	t.Run("UpsertRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "salt-a", "hash-a"))

		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "emp-1", row.PrincipalID)
		assert.Equal(t, "salt-a", row.Salt)
		assert.Equal(t, "hash-a", row.Hash)
		assert.True(t, row.Active)
		assert.Zero(t, row.FailedAttempts)
		assert.Nil(t, row.LockedUntil)
		assert.Nil(t, row.LastSuccessAt)
	})

	t.Run("UpsertReplacesAndClearsLock", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "salt-a", "hash-a"))
		_, _, err := s.RecordFailure(ctx, "emp-1", 1, base.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.Deactivate(ctx, "emp-1"))

		require.NoError(t, s.Upsert(ctx, "emp-1", "salt-b", "hash-b"))
		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "salt-b", row.Salt)
		assert.Equal(t, "hash-b", row.Hash)
		assert.True(t, row.Active)
		assert.Zero(t, row.FailedAttempts)
		assert.Nil(t, row.LockedUntil)
	})

	t.Run("FailureCountingAndLock", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "s", "h"))
		lockUntil := base.Add(15 * time.Minute)

		for i := 1; i <= 4; i++ {
			n, locked, err := s.RecordFailure(ctx, "emp-1", 5, lockUntil)
			require.NoError(t, err)
			assert.Equal(t, i, n)
			assert.False(t, locked)
		}
		n, locked, err := s.RecordFailure(ctx, "emp-1", 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.True(t, locked)

		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		require.NotNil(t, row.LockedUntil)
		assert.True(t, row.LockedUntil.Equal(lockUntil))
		assert.Equal(t, 5, row.FailedAttempts)
	})

	t.Run("NonAtomicPath", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "s", "h"))

		n, err := s.IncrementFailedAttempts(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.NoError(t, s.SetLock(ctx, "emp-1", base))
		require.NoError(t, s.SetLastSuccess(ctx, "emp-1", base))

		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		require.NotNil(t, row.LockedUntil)
		require.NotNil(t, row.LastSuccessAt)
		assert.True(t, row.LastSuccessAt.Equal(base))

		require.NoError(t, s.ResetAttempts(ctx, "emp-1"))
		row, err = s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.Zero(t, row.FailedAttempts)
		assert.Nil(t, row.LockedUntil)
	})

	t.Run("RecordSuccessResets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "s", "h"))
		_, _, err := s.RecordFailure(ctx, "emp-1", 2, base)
		require.NoError(t, err)

		require.NoError(t, s.RecordSuccess(ctx, "emp-1", base.Add(time.Minute)))
		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.Zero(t, row.FailedAttempts)
		assert.Nil(t, row.LockedUntil)
		require.NotNil(t, row.LastSuccessAt)
		assert.True(t, row.LastSuccessAt.Equal(base.Add(time.Minute)))
	})

	t.Run("DeactivateKeepsRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "s", "h"))
		require.NoError(t, s.Deactivate(ctx, "emp-1"))
		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.False(t, row.Active)
		assert.Equal(t, "h", row.Hash)
	})

	t.Run("ConcurrentRecordFailureIsAtomic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "emp-1", "s", "h"))

		const workers = 32
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			counts = make(map[int]int)
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, _, err := s.RecordFailure(ctx, "emp-1", 5, base)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				counts[n]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, counts, workers, "every increment must observe a distinct count")
		row, err := s.Get(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, workers, row.FailedAttempts)
	})
}
