package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/auditsink"
	"github.com/MrEthical07/pinauth/capability"
	"github.com/MrEthical07/pinauth/internal/server"
	promexport "github.com/MrEthical07/pinauth/metrics/export/prometheus"
	"github.com/MrEthical07/pinauth/platform"
	"github.com/MrEthical07/pinauth/secondfactor"
	"github.com/MrEthical07/pinauth/store/redisstore"
	"github.com/MrEthical07/pinauth/store/sqlitestore"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app is the fully wired server.
type app struct {
	Engine    *pinauth.Engine
	Directory *sqlitestore.Store
	Handler   http.Handler

	closers []func() error
}

// Close releases everything in reverse construction order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	for _, w := range engineCfg.Lint().BySeverity(pinauth.LintWarn) {
		logger.Warn("config lint",
			zap.String("code", w.Code),
			zap.String("severity", w.Severity.String()),
			zap.String("message", w.Message),
		)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, rdb.Close)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	dir, err := sqlitestore.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	a.Directory = dir
	a.closers = append(a.closers, dir.Close)

	var credentials pinauth.CredentialStore
	switch cfg.Store.Driver {
	case "sqlite":
		credentials = dir
	case "redis":
		credentials = redisstore.New(rdb, "")
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	caps, err := roleProvider(cfg.Capability.Roles, dir.Roles)
	if err != nil {
		return nil, err
	}

	b := pinauth.New().
		WithConfig(engineCfg).
		WithCredentialStore(credentials).
		WithCapabilityProvider(caps).
		WithPreferenceStore(dir).
		WithPlatformSession(platform.NewStore(rdb, platform.Config{TTL: cfg.Session.PlatformTTL})).
		WithRedis(rdb).
		WithLogger(logger).
		WithMetricsEnabled(cfg.Metrics.Enabled).
		WithLatencyHistograms(cfg.Metrics.Latency)

	if cfg.SecondFactor.Enabled {
		key, err := decodeKey("second_factor.seal_key", cfg.SecondFactor.SealKey)
		if err != nil {
			return nil, err
		}
		factors, err := secondfactor.NewProvider(rdb, secondfactor.Config{
			Issuer:  cfg.SecondFactor.Issuer,
			SealKey: key,
		})
		if err != nil {
			return nil, err
		}
		b = b.WithSecondFactorProvider(factors)
	}

	sink, err := auditSink(cfg, logger)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		b = b.WithAuditSink(sink)
		if c, ok := sink.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.Engine = engine
	a.closers = append(a.closers, func() error { engine.Close(); return nil })

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		reg := promclient.NewRegistry()
		reg.MustRegister(
			promexport.NewExporter(engine).Collector(),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	a.Handler = server.New(server.Options{
		Engine:         engine,
		Logger:         logger,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        metrics,
	})
	return a, nil
}

// roleProvider registers every capability named by roles and resolves
// principals through lookup.
func roleProvider(roles map[string][]string, lookup capability.RoleLookup) (*capability.RoleProvider, error) {
	reg := capability.NewRegistry()
	seen := map[string]bool{}
	for _, caps := range roles {
		for _, c := range caps {
			if seen[c] {
				continue
			}
			seen[c] = true
			if _, err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register capability %q: %w", c, err)
			}
		}
	}
	reg.Freeze()

	rs := capability.NewRoles(reg)
	for name, caps := range roles {
		if err := rs.Register(name, caps); err != nil {
			return nil, fmt.Errorf("register role %q: %w", name, err)
		}
	}
	rs.Freeze()
	return capability.NewRoleProvider(reg, rs, lookup), nil
}

func auditSink(cfg *Config, logger *zap.Logger) (pinauth.AuditSink, error) {
	switch cfg.Audit.Sink {
	case "", "none":
		return nil, nil
	case "zap":
		return auditsink.NewZapSink(logger), nil
	case "kafka":
		return auditsink.NewKafkaSink(auditsink.KafkaConfig{
			Brokers: cfg.Audit.KafkaBrokers,
			Topic:   cfg.Audit.KafkaTopic,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}
