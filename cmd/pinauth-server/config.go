package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the server configuration, read from config.yaml and PINAUTH_*
// environment variables.
type Config struct {
	Environment string `mapstructure:"environment"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Store struct {
		// Driver is "sqlite" or "redis". Preferences and roles always live in SQLite.
		Driver     string `mapstructure:"driver"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"store"`

	PIN struct {
		HashAlgorithm string `mapstructure:"hash_algorithm"`
	} `mapstructure:"pin"`

	Lockout struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		Duration    time.Duration `mapstructure:"duration"`
	} `mapstructure:"lockout"`

	Session struct {
		TTL           time.Duration `mapstructure:"ttl"`
		SigningKey    string        `mapstructure:"signing_key"`
		CookieName    string        `mapstructure:"cookie_name"`
		SecureCookies bool          `mapstructure:"secure_cookies"`
		PlatformTTL   time.Duration `mapstructure:"platform_ttl"`
	} `mapstructure:"session"`

	SecondFactor struct {
		Enabled      bool          `mapstructure:"enabled"`
		Issuer       string        `mapstructure:"issuer"`
		SealKey      string        `mapstructure:"seal_key"`
		ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	} `mapstructure:"second_factor"`

	Capability struct {
		Roles    map[string][]string `mapstructure:"roles"`
		CacheTTL time.Duration       `mapstructure:"cache_ttl"`
	} `mapstructure:"capability"`

	Security struct {
		ProductionMode   bool          `mapstructure:"production_mode"`
		IPThrottle       bool          `mapstructure:"ip_throttle"`
		MaxAttemptsPerIP int           `mapstructure:"max_attempts_per_ip"`
		IPThrottleWindow time.Duration `mapstructure:"ip_throttle_window"`
	} `mapstructure:"security"`

	Audit struct {
		Sink         string   `mapstructure:"sink"`
		KafkaBrokers []string `mapstructure:"kafka_brokers"`
		KafkaTopic   string   `mapstructure:"kafka_topic"`
	} `mapstructure:"audit"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Latency bool `mapstructure:"latency"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./pinauth.db")
	v.SetDefault("pin.hash_algorithm", "sha256")
	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.duration", 15*time.Minute)
	v.SetDefault("session.ttl", 8*time.Hour)
	v.SetDefault("session.signing_key", "")
	v.SetDefault("session.cookie_name", "pin_session")
	v.SetDefault("session.secure_cookies", true)
	v.SetDefault("session.platform_ttl", 8*time.Hour)
	v.SetDefault("second_factor.enabled", false)
	v.SetDefault("second_factor.issuer", "pinauth")
	v.SetDefault("second_factor.seal_key", "")
	v.SetDefault("second_factor.challenge_ttl", 5*time.Minute)
	v.SetDefault("capability.roles", map[string][]string{
		"field":    {"time-tracking"},
		"traveler": {"expense"},
	})
	v.SetDefault("capability.cache_ttl", time.Minute)
	v.SetDefault("security.production_mode", false)
	v.SetDefault("security.ip_throttle", false)
	v.SetDefault("security.max_attempts_per_ip", 50)
	v.SetDefault("security.ip_throttle_window", 15*time.Minute)
	v.SetDefault("audit.sink", "zap")
	v.SetDefault("audit.kafka_brokers", []string{})
	v.SetDefault("audit.kafka_topic", "pinauth.audit")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latency", true)
}

// LoadConfig reads .env (if present), then config.yaml from configPaths, then
// PINAUTH_* variables; later sources win.
func LoadConfig(configPaths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("PINAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// EngineConfig maps the server configuration onto [pinauth.Config].
func (c *Config) EngineConfig() (pinauth.Config, error) {
	key, err := decodeKey("session.signing_key", c.Session.SigningKey)
	if err != nil {
		return pinauth.Config{}, err
	}

	out := pinauth.DefaultConfig()
	out.PIN.HashAlgorithm = c.PIN.HashAlgorithm
	out.Lockout.MaxAttempts = c.Lockout.MaxAttempts
	out.Lockout.Duration = c.Lockout.Duration
	out.Session.TTL = c.Session.TTL
	out.Session.PrivateKey = key
	out.Session.CookieName = c.Session.CookieName
	out.SecondFactor.ChallengeTTL = c.SecondFactor.ChallengeTTL
	out.Capability.CacheEnabled = c.Capability.CacheTTL > 0
	if out.Capability.CacheEnabled {
		out.Capability.CacheTTL = c.Capability.CacheTTL
	}
	out.Security.ProductionMode = c.Security.ProductionMode
	out.Security.EnableIPThrottle = c.Security.IPThrottle
	out.Security.MaxAttemptsPerIP = c.Security.MaxAttemptsPerIP
	out.Security.IPThrottleWindow = c.Security.IPThrottleWindow
	out.Security.RequireSecureCookies = c.Session.SecureCookies
	out.Audit.Enabled = c.Audit.Sink != "" && c.Audit.Sink != "none"
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Latency

	if err := out.Validate(); err != nil {
		return pinauth.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return out, nil
}

// decodeKey accepts standard or URL-safe base64.
func decodeKey(name, s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%s must be base64", name)
}
