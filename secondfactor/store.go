package secondfactor

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldSecret    = "secret"
	fieldConfirmed = "confirmed"
	fieldLastStep  = "last_step"
)

// advanceStepScript stores ARGV[1] as the last accepted TOTP step only when it
// is newer than the recorded one.
var advanceStepScript = redis.NewScript(`
local last = tonumber(redis.call('HGET', KEYS[1], ARGV[2]) or '-1')
local step = tonumber(ARGV[1])
if step <= last then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// redisStore persists sealed secrets and backup-code hashes.
//
//	<prefix>:<principal>   hash {secret, confirmed, last_step}
//	<prefix>b:<principal>  set of backup-code hashes
type redisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func (s *redisStore) key(principalID string) string {
	return s.prefix + ":" + principalID
}

func (s *redisStore) codesKey(principalID string) string {
	return s.prefix + "b:" + principalID
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func (s *redisStore) putSecret(ctx context.Context, principalID, sealed string) error {
	if err := s.redis.HSet(ctx, s.key(principalID), fieldSecret, sealed, fieldConfirmed, "0").Err(); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *redisStore) confirm(ctx context.Context, principalID string) error {
	if err := s.redis.HSet(ctx, s.key(principalID), fieldConfirmed, "1").Err(); err != nil {
		return wrap(err)
	}
	return nil
}

// secret returns the sealed secret and whether it was confirmed. An empty
// sealed string means no enrollment.
func (s *redisStore) secret(ctx context.Context, principalID string) (string, bool, error) {
	vals, err := s.redis.HMGet(ctx, s.key(principalID), fieldSecret, fieldConfirmed).Result()
	if err != nil {
		return "", false, wrap(err)
	}
	sealed, _ := vals[0].(string)
	confirmed, _ := vals[1].(string)
	return sealed, confirmed == "1", nil
}

// advanceStep records step as the last accepted TOTP step and reports whether
// it was newer than the previous one.
func (s *redisStore) advanceStep(ctx context.Context, principalID string, step int64) (bool, error) {
	n, err := advanceStepScript.Run(ctx, s.redis, []string{s.key(principalID)}, step, fieldLastStep).Int()
	if err != nil {
		return false, wrap(err)
	}
	return n == 1, nil
}

func (s *redisStore) replaceCodes(ctx context.Context, principalID string, hashes []string) error {
	key := s.codesKey(principalID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(hashes) > 0 {
			members := make([]any, len(hashes))
			for i, h := range hashes {
				members[i] = h
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (s *redisStore) consumeCode(ctx context.Context, principalID, hash string) (bool, error) {
	n, err := s.redis.SRem(ctx, s.codesKey(principalID), hash).Result()
	if err != nil {
		return false, wrap(err)
	}
	return n == 1, nil
}

func (s *redisStore) codeCount(ctx context.Context, principalID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.codesKey(principalID)).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return int(n), nil
}

func (s *redisStore) remove(ctx context.Context, principalID string) error {
	if err := s.redis.Del(ctx, s.key(principalID), s.codesKey(principalID)).Err(); err != nil {
		return wrap(err)
	}
	return nil
}
