// Package redisstore is a Redis-backed pinauth.CredentialStore. Each principal
// is one hash; counter and lock updates run as Lua scripts so concurrent
// failures are counted exactly.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldSalt        = "salt"
	fieldHash        = "hash"
	fieldActive      = "active"
	fieldFailed      = "failed"
	fieldLockedUntil = "locked_until"
	fieldLastSuccess = "last_success"
)

// KEYS[1] = row; returns -1 when the row is missing.
const incrementScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "failed", 1)
`

// KEYS[1] = row; ARGV[1] = max attempts; ARGV[2] = lock until (unix nanos).
const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local n = redis.call("HINCRBY", KEYS[1], "failed", 1)
if n >= tonumber(ARGV[1]) then
  redis.call("HSET", KEYS[1], "locked_until", ARGV[2])
  return {n, 1}
end
return {n, 0}
`

// KEYS[1] = row; ARGV = field/value pairs; fields prefixed with "-" are deleted.
const updateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
for i = 1, #ARGV, 2 do
  local f = ARGV[i]
  if string.sub(f, 1, 1) == "-" then
    redis.call("HDEL", KEYS[1], string.sub(f, 2))
  else
    redis.call("HSET", KEYS[1], f, ARGV[i + 1])
  end
end
return 1
`

var (
	incrementLua     = redis.NewScript(incrementScript)
	recordFailureLua = redis.NewScript(recordFailureScript)
	updateLua        = redis.NewScript(updateScript)
)

// Store keeps credential rows as Redis hashes under prefix.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var (
	_ pinauth.CredentialStore       = (*Store)(nil)
	_ pinauth.AtomicFailureRecorder = (*Store)(nil)
	_ pinauth.SuccessRecorder       = (*Store)(nil)
)

// New returns a Store. An empty prefix defaults to "pin".
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "pin"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) key(principalID string) string {
	return s.prefix + ":" + principalID
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// Get loads the row for principalID.
func (s *Store) Get(ctx context.Context, principalID string) (*pinauth.PinCredential, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(principalID)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(fields) == 0 {
		return nil, pinauth.ErrCredentialNotFound
	}

	row := &pinauth.PinCredential{
		PrincipalID: principalID,
		Salt:        fields[fieldSalt],
		Hash:        fields[fieldHash],
		Active:      fields[fieldActive] == "1",
	}
	if v := fields[fieldFailed]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt failed counter for %s: %w", principalID, err)
		}
		row.FailedAttempts = n
	}
	if row.LockedUntil, err = parseNanos(fields[fieldLockedUntil]); err != nil {
		return nil, fmt.Errorf("corrupt locked_until for %s: %w", principalID, err)
	}
	if row.LastSuccessAt, err = parseNanos(fields[fieldLastSuccess]); err != nil {
		return nil, fmt.Errorf("corrupt last_success for %s: %w", principalID, err)
	}
	return row, nil
}

func parseNanos(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.Unix(0, n).UTC()
	return &t, nil
}

func nanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// Upsert writes salt and hash, reactivates the row and clears the lockout
// state in one transaction.
func (s *Store) Upsert(ctx context.Context, principalID, salt, hash string) error {
	key := s.key(principalID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSalt, salt,
			fieldHash, hash,
			fieldActive, "1",
			fieldFailed, "0",
		)
		pipe.HDel(ctx, key, fieldLockedUntil)
		return nil
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, principalID string, args ...any) error {
	ok, err := updateLua.Run(ctx, s.redis, []string{s.key(principalID)}, args...).Int()
	if err != nil {
		return wrap(err)
	}
	if ok == 0 {
		return pinauth.ErrCredentialNotFound
	}
	return nil
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, principalID string) (int, error) {
	n, err := incrementLua.Run(ctx, s.redis, []string{s.key(principalID)}).Int()
	if err != nil {
		return 0, wrap(err)
	}
	if n < 0 {
		return 0, pinauth.ErrCredentialNotFound
	}
	return n, nil
}

func (s *Store) SetLock(ctx context.Context, principalID string, until time.Time) error {
	return s.update(ctx, principalID, fieldLockedUntil, nanos(until))
}

func (s *Store) ResetAttempts(ctx context.Context, principalID string) error {
	return s.update(ctx, principalID, fieldFailed, "0", "-"+fieldLockedUntil, "")
}

func (s *Store) SetLastSuccess(ctx context.Context, principalID string, when time.Time) error {
	return s.update(ctx, principalID, fieldLastSuccess, nanos(when))
}

func (s *Store) Deactivate(ctx context.Context, principalID string) error {
	return s.update(ctx, principalID, fieldActive, "0")
}

// RecordFailure increments the counter and writes lockUntil once the count
// reaches maxAttempts, in one script.
func (s *Store) RecordFailure(ctx context.Context, principalID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	res, err := recordFailureLua.Run(ctx, s.redis, []string{s.key(principalID)}, maxAttempts, nanos(lockUntil)).Int64Slice()
	if err != nil {
		return 0, false, wrap(err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	if res[0] < 0 {
		return 0, false, pinauth.ErrCredentialNotFound
	}
	return int(res[0]), res[1] == 1, nil
}

// RecordSuccess clears the lockout state and stamps when in one script.
func (s *Store) RecordSuccess(ctx context.Context, principalID string, when time.Time) error {
	return s.update(ctx, principalID,
		fieldFailed, "0",
		"-"+fieldLockedUntil, "",
		fieldLastSuccess, nanos(when),
	)
}
