package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned by Get for unknown or expired handles.
	ErrNotFound = errors.New("platform session not found")
)

const clearScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var clearLua = redis.NewScript(clearScript)

// Config tunes a [Store].
type Config struct {
	// Prefix namespaces every key. Defaults to "pps".
	Prefix string
	// TTL is the lifetime of an established session. Defaults to 8h.
	TTL time.Duration
	// Now overrides the clock used for record timestamps.
	Now func() time.Time
}

// Store keeps platform sessions in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore returns a [Store] on rdb.
func NewStore(rdb redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "pps"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		redis:  rdb,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
}

func (s *Store) key(handle string) string {
	return s.prefix + ":" + handle
}

func (s *Store) principalKey(principalID string) string {
	return s.prefix + "u:" + principalID
}

// Establish creates a platform session for principalID and returns its handle.
func (s *Store) Establish(ctx context.Context, principalID string) (string, error) {
	now := s.now()
	rec := &Record{
		Handle:      uuid.NewString(),
		PrincipalID: principalID,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(s.ttl).Unix(),
	}
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.Handle), data, s.ttl)
		pipe.SAdd(ctx, s.principalKey(principalID), rec.Handle)
		pipe.Expire(ctx, s.principalKey(principalID), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return rec.Handle, nil
}

// Get returns the record behind handle, or [ErrNotFound].
func (s *Store) Get(ctx context.Context, handle string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.Handle = handle
	return rec, nil
}

// Clear removes the session behind handle. Unknown handles are not an error.
func (s *Store) Clear(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	data, err := s.redis.Get(ctx, s.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	rec, err := Decode(data)
	if err != nil {
		// A corrupt blob is still removed.
		if delErr := s.redis.Del(ctx, s.key(handle)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	keys := []string{s.key(handle), s.principalKey(rec.PrincipalID)}
	if err := clearLua.Run(ctx, s.redis, keys, handle).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveHandles returns the handles still indexed for principalID.
func (s *Store) ActiveHandles(ctx context.Context, principalID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.principalKey(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// ClearAllForPrincipal removes every indexed session of principalID.
//
// Not atomic: a session established between the index read and the delete
// survives until its TTL.
func (s *Store) ClearAllForPrincipal(ctx context.Context, principalID string) error {
	handles, err := s.ActiveHandles(ctx, principalID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(handles)+1)
	for _, h := range handles {
		keys = append(keys, s.key(h))
	}
	keys = append(keys, s.principalKey(principalID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
