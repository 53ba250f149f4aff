package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfigDefaultsFileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
lockout:
  max_attempts: 3
session:
  ttl: 4h
`)
	t.Setenv("PINAUTH_SESSION_SIGNING_KEY", testKey)
	t.Setenv("PINAUTH_LOCKOUT_DURATION", "30m")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Store.Driver != "sqlite" {
		t.Fatalf("defaults not applied: %+v", cfg.HTTP)
	}
	if len(cfg.HTTP.AllowedOrigins) != 0 {
		t.Fatalf("CORS origins must be opt-in, got %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Lockout.MaxAttempts != 3 || cfg.Session.TTL != 4*time.Hour {
		t.Fatalf("file values not applied: %+v %+v", cfg.Lockout, cfg.Session.TTL)
	}
	if cfg.Lockout.Duration != 30*time.Minute {
		t.Fatalf("env override not applied: %v", cfg.Lockout.Duration)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if ec.Lockout.MaxAttempts != 3 || len(ec.Session.PrivateKey) != 32 {
		t.Fatalf("engine config mismatch: %+v", ec.Lockout)
	}
	if !ec.Capability.CacheEnabled {
		t.Fatal("default cache_ttl must enable the capability cache")
	}
}

func TestEngineConfigRequiresSigningKey(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected missing signing key error")
	}

	cfg.Session.SigningKey = "%%%"
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected base64 error")
	}

	cfg.Session.SigningKey = base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected short key to fail validation")
	}
}

func TestBuildAppServesLoginAndMetrics(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Redis.Addr = mr.Addr()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "pinauth.db")
	cfg.Session.SigningKey = testKey
	cfg.Session.SecureCookies = false
	cfg.Audit.Sink = "zap"

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()

	if err := a.Directory.AssignRoles(ctx, "emp-1", "field"); err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}
	if err := a.Engine.CreateOrReplaceCredential(ctx, "emp-1", "HX47KP"); err != nil {
		t.Fatalf("CreateOrReplaceCredential: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/pin/login",
		bytes.NewBufferString(`{"principal_id":"emp-1","pin":"HX47KP"}`))
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %d", len(cookies))
	}

	req = httptest.NewRequest(http.MethodGet, "/app/expense", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app/clock" {
		t.Fatalf("expense for field role: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pinauth_pin_verify_success_total 1") {
		t.Fatalf("metrics missing verify success counter:\n%s", rec.Body.String())
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("expected a platform session key in redis")
	}
}

func TestBuildAppRejectsUnknownDrivers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Redis.Addr = mr.Addr()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "pinauth.db")
	cfg.Session.SigningKey = testKey

	cfg.Store.Driver = "postgres"
	if _, err := buildApp(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected unknown store driver error")
	}

	cfg.Store.Driver = "redis"
	cfg.Audit.Sink = "syslog"
	if _, err := buildApp(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected unknown audit sink error")
	}
}
