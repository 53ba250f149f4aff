package pinauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is a minimal CredentialStore without the atomic extensions, so the
// engine's fallback write path is exercised.
type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]*PinCredential
	reads int
	fault error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*PinCredential{}}
}

func (s *fakeStore) row(id string) (*PinCredential, error) {
	if s.fault != nil {
		return nil, s.fault
	}
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return r, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*PinCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	r, err := s.row(id)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) Upsert(_ context.Context, id, salt, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return s.fault
	}
	r, ok := s.rows[id]
	if !ok {
		r = &PinCredential{PrincipalID: id}
		s.rows[id] = r
	}
	r.Salt, r.Hash, r.Active = salt, hash, true
	r.FailedAttempts, r.LockedUntil = 0, nil
	return nil
}

func (s *fakeStore) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return 0, err
	}
	r.FailedAttempts++
	return r.FailedAttempts, nil
}

func (s *fakeStore) SetLock(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.LockedUntil = &until
	return nil
}

func (s *fakeStore) ResetAttempts(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.FailedAttempts, r.LockedUntil = 0, nil
	return nil
}

func (s *fakeStore) SetLastSuccess(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.LastSuccessAt = &when
	return nil
}

func (s *fakeStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.Active = false
	return nil
}

func (s *fakeStore) snapshot(id string) PinCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

type fakeCapabilities map[string][]string

func (f fakeCapabilities) HasCapability(_ context.Context, id, c string) (bool, error) {
	if id == "capability-down" {
		return false, errors.New("directory timeout")
	}
	for _, have := range f[id] {
		if have == c {
			return true, nil
		}
	}
	return false, nil
}

type fakeSecondFactor struct {
	mu       sync.Mutex
	enrolled map[string]bool
	secrets  map[string]string
	backup   map[string]map[string]bool
}

func newFakeSecondFactor() *fakeSecondFactor {
	return &fakeSecondFactor{
		enrolled: map[string]bool{},
		secrets:  map[string]string{},
		backup:   map[string]map[string]bool{},
	}
}

func (f *fakeSecondFactor) HasEnrolledFactor(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enrolled[id], nil
}

func (f *fakeSecondFactor) TOTPSecret(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secrets[id], nil
}

// VerifyTOTP accepts the secret reversed as the current code.
func (f *fakeSecondFactor) VerifyTOTP(secret, code string) bool {
	r := []rune(secret)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return secret != "" && string(r) == code
}

func (f *fakeSecondFactor) ConsumeBackupCode(_ context.Context, id, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backup[id][code] {
		delete(f.backup[id], code)
		return true, nil
	}
	return false, nil
}

type fakePreferences struct {
	optIn   map[string]bool
	capture map[string]CaptureMode
}

func (p *fakePreferences) SecondFactorOptIn(_ context.Context, id string) (bool, error) {
	return p.optIn[id], nil
}

func (p *fakePreferences) CapturePreference(_ context.Context, id string) (CaptureMode, error) {
	return p.capture[id], nil
}

type fakePlatform struct {
	mu      sync.Mutex
	next    int
	live    map[string]string
	cleared []string
	fail    error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{live: map[string]string{}}
}

func (p *fakePlatform) Establish(_ context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.next++
	h := "ph-" + string(rune('a'+p.next))
	p.live[h] = id
	return h, nil
}

func (p *fakePlatform) Clear(_ context.Context, h string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, h)
	p.cleared = append(p.cleared, h)
	return nil
}

type testEngine struct {
	*Engine
	store    *fakeStore
	clock    *testClock
	factor   *fakeSecondFactor
	prefs    *fakePreferences
	platform *fakePlatform
	sink     *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.PrivateKey = testSigningKey
	cfg.Metrics.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	cfg.Audit.DropIfFull = true
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()
	return newTestEngineWith(t, nil, mutate...)
}

// newTestEngineWith lets a test add collaborators, such as a Redis client, to
// the builder before Build.
func newTestEngineWith(t testing.TB, extra func(*Builder), mutate ...func(*Config)) *testEngine {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	te := &testEngine{
		store:    newFakeStore(),
		clock:    newTestClock(),
		factor:   newFakeSecondFactor(),
		prefs:    &fakePreferences{optIn: map[string]bool{}, capture: map[string]CaptureMode{}},
		platform: newFakePlatform(),
		sink:     NewChannelSink(1024),
	}

	b := New().
		WithConfig(cfg).
		WithCredentialStore(te.store).
		WithCapabilityProvider(fakeCapabilities{
			"emp-expense": {"expense"},
			"emp-time":    {"time-tracking"},
			"emp-both":    {"time-tracking", "expense"},
		}).
		WithSecondFactorProvider(te.factor).
		WithPreferenceStore(te.prefs).
		WithPlatformSession(te.platform).
		WithAuditSink(te.sink).
		WithClock(te.clock.Now)
	if extra != nil {
		extra(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

func (te *testEngine) enroll(t testing.TB, id, pin string) {
	t.Helper()
	if err := te.CreateOrReplaceCredential(context.Background(), id, pin); err != nil {
		t.Fatalf("CreateOrReplaceCredential(%s): %v", id, err)
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}
