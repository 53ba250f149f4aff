// Package memory is an in-process pinauth.CredentialStore.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/pinauth"
)

// Store keeps credential rows in a map guarded by a mutex. Returned rows are
// copies.
type Store struct {
	mu   sync.Mutex
	rows map[string]*pinauth.PinCredential
}

var (
	_ pinauth.CredentialStore       = (*Store)(nil)
	_ pinauth.AtomicFailureRecorder = (*Store)(nil)
	_ pinauth.SuccessRecorder       = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{rows: make(map[string]*pinauth.PinCredential)}
}

func (s *Store) row(principalID string) (*pinauth.PinCredential, error) {
	r, ok := s.rows[principalID]
	if !ok {
		return nil, pinauth.ErrCredentialNotFound
	}
	return r, nil
}

func copyRow(r *pinauth.PinCredential) *pinauth.PinCredential {
	cp := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		cp.LockedUntil = &t
	}
	if r.LastSuccessAt != nil {
		t := *r.LastSuccessAt
		cp.LastSuccessAt = &t
	}
	return &cp
}

// Get returns a copy of the row for principalID.
func (s *Store) Get(_ context.Context, principalID string) (*pinauth.PinCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return nil, err
	}
	return copyRow(r), nil
}

// Upsert writes salt and hash, reactivates the row and clears the lockout state.
func (s *Store) Upsert(_ context.Context, principalID, salt, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[principalID]
	if !ok {
		r = &pinauth.PinCredential{PrincipalID: principalID}
		s.rows[principalID] = r
	}
	r.Salt = salt
	r.Hash = hash
	r.Active = true
	r.FailedAttempts = 0
	r.LockedUntil = nil
	return nil
}

func (s *Store) IncrementFailedAttempts(_ context.Context, principalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return 0, err
	}
	r.FailedAttempts++
	return r.FailedAttempts, nil
}

func (s *Store) SetLock(_ context.Context, principalID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return err
	}
	r.LockedUntil = &until
	return nil
}

func (s *Store) ResetAttempts(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return err
	}
	r.FailedAttempts = 0
	r.LockedUntil = nil
	return nil
}

func (s *Store) SetLastSuccess(_ context.Context, principalID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return err
	}
	r.LastSuccessAt = &when
	return nil
}

func (s *Store) Deactivate(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return err
	}
	r.Active = false
	return nil
}

// RecordFailure increments the counter and sets the lock once it reaches
// maxAttempts, under one critical section.
func (s *Store) RecordFailure(_ context.Context, principalID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return 0, false, err
	}
	r.FailedAttempts++
	if r.FailedAttempts >= maxAttempts {
		until := lockUntil
		r.LockedUntil = &until
		return r.FailedAttempts, true, nil
	}
	return r.FailedAttempts, false, nil
}

// RecordSuccess clears the lockout state and stamps when.
func (s *Store) RecordSuccess(_ context.Context, principalID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(principalID)
	if err != nil {
		return err
	}
	r.FailedAttempts = 0
	r.LockedUntil = nil
	r.LastSuccessAt = &when
	return nil
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
