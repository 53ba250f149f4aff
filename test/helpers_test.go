//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/capability"
	"github.com/MrEthical07/pinauth/platform"
	"github.com/MrEthical07/pinauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var integrationKey = []byte("integration-signing-key-012345678")

// redisMode describes which Redis backend a suite is running against.
// Cluster clients cannot run the multi-key platform scripts.
type redisMode struct {
	name    string
	cluster bool
	setup   func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test. miniredis is always
// available. Real Redis standalone is used when REDIS_ADDR is set, a cluster
// when REDIS_CLUSTER_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name:    "cluster",
			cluster: true,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// newRedisEngine builds an engine whose credential rows live in rdb. A
// platform session store is attached unless withPlatform is false.
func newRedisEngine(t *testing.T, rdb redis.UniversalClient, withPlatform bool, mutate ...func(*pinauth.Config)) *pinauth.Engine {
	t.Helper()

	cfg := pinauth.DefaultConfig()
	cfg.Session.PrivateKey = integrationKey
	for _, m := range mutate {
		m(&cfg)
	}

	b := pinauth.New().
		WithConfig(cfg).
		WithCredentialStore(redisstore.New(rdb, "pin")).
		WithCapabilityProvider(capability.NewStatic(map[string][]string{
			"emp-1": {"time-tracking"},
			"emp-2": {"expense"},
		})).
		WithRedis(rdb)
	if withPlatform {
		b = b.WithPlatformSession(platform.NewStore(rdb, platform.Config{TTL: cfg.Session.TTL}))
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
