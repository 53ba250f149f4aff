package test

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/capability"
	"github.com/MrEthical07/pinauth/store/memory"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := pinauth.DefaultConfig()
	cfg.Session.PrivateKey = []byte("replace-with-a-32-byte-secret-key")
	cfg.Security.EnableIPThrottle = true

	engine, _ := pinauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(memory.New()).
		WithCapabilityProvider(capability.NewStatic(map[string][]string{
			"emp-1": {"time-tracking"},
		})).
		Build()
	_ = engine
}

// ExampleEngine_Login shows a PIN login and the outcomes a caller handles.
func ExampleEngine_Login() {
	cfg := pinauth.DefaultConfig()
	cfg.Session.PrivateKey = []byte("example-signing-key-0123456789abc")

	engine, err := pinauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithCapabilityProvider(capability.NewStatic(map[string][]string{
			"emp-1": {"time-tracking"},
		})).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	ctx := context.Background()
	_ = engine.CreateOrReplaceCredential(ctx, "emp-1", "ABC123")

	res, err := engine.Login(ctx, "emp-1", "ZZZ999")
	switch {
	case errors.Is(err, pinauth.ErrStoreUnavailable):
		fmt.Println("try again later")
	case err != nil:
		fmt.Println(err)
	case !res.Verify.Success:
		fmt.Println(res.Verify.Reason, res.Verify.RemainingAttempts)
	}

	res, _ = engine.Login(ctx, "emp-1", "abc123")
	fmt.Println(res.Verify.Success, res.Session.Restricted)

	d, _ := engine.Authorize(ctx, "emp-1", "expense")
	fmt.Println(d.Kind, d.Route)

	// Output:
	// invalid_pin 4
	// true true
	// redirect clock
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *pinauth.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
