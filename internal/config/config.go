// Package config loads the service configuration from an optional YAML file
// overlaid with ZSPA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides: ZSPA_<SECTION>_<KEY>.
const EnvPrefix = "ZSPA_"

// Config is the complete service configuration.
type Config struct {
	Server      Server      `mapstructure:"server" yaml:"server"`
	Inference   Inference   `mapstructure:"inference" yaml:"inference"`
	Swap        Swap        `mapstructure:"swap" yaml:"swap"`
	Verifier    Verifier    `mapstructure:"verifier" yaml:"verifier"`
	Poller      Poller      `mapstructure:"poller" yaml:"poller"`
	Store       Store       `mapstructure:"store" yaml:"store"`
	Persistence Persistence `mapstructure:"persistence" yaml:"persistence"`
	Log         Log         `mapstructure:"log" yaml:"log"`
}

type Server struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MaxInputSize    int           `mapstructure:"max_input_size" yaml:"max_input_size"`
	ForkGrace       time.Duration `mapstructure:"fork_grace" yaml:"fork_grace"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type Inference struct {
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	Model            string        `mapstructure:"model" yaml:"model"`
	Temperature      float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SignatureTimeout time.Duration `mapstructure:"signature_timeout" yaml:"signature_timeout"`
}

type Swap struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Referral       string        `mapstructure:"referral" yaml:"referral"`
	SlippageBps    int           `mapstructure:"slippage_bps" yaml:"slippage_bps"`
	QuoteDeadline  time.Duration `mapstructure:"quote_deadline" yaml:"quote_deadline"`
	CatalogTimeout time.Duration `mapstructure:"catalog_timeout" yaml:"catalog_timeout"`
	QuoteTimeout   time.Duration `mapstructure:"quote_timeout" yaml:"quote_timeout"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout" yaml:"status_timeout"`
	OriginSymbol   string        `mapstructure:"origin_symbol" yaml:"origin_symbol"`
	OriginChain    string        `mapstructure:"origin_chain" yaml:"origin_chain"`
}

type Verifier struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

type Poller struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
}

type Store struct {
	// Driver is memory or redis.
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	// EncryptionKey is a 32-byte key, hex or base64. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
	// FallbackKeys decrypt records written before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

type Persistence struct {
	// Driver is memory or sqlite.
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			MaxInputSize:    4096,
			ForkGrace:       30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Inference: Inference{
			BaseURL:          "https://cloud-api.near.ai/v1",
			Model:            "openai/gpt-oss-120b",
			Temperature:      0.3,
			Timeout:          120 * time.Second,
			SignatureTimeout: 30 * time.Second,
		},
		Swap: Swap{
			BaseURL:        "https://1click.chaindefuser.com",
			Referral:       "zec-private-agent",
			SlippageBps:    100,
			QuoteDeadline:  time.Hour,
			CatalogTimeout: 10 * time.Second,
			QuoteTimeout:   15 * time.Second,
			StatusTimeout:  15 * time.Second,
			OriginSymbol:   "ZEC",
			OriginChain:    "zec",
		},
		Verifier: Verifier{
			MaxRetries: 3,
			Backoff:    time.Second,
		},
		Poller: Poller{
			MaxRetries: 100,
			Interval:   36 * time.Second,
		},
		Store: Store{
			Driver:    "memory",
			RedisAddr: "localhost:6379",
			Prefix:    "zspa:session:",
			TTL:       7 * 24 * time.Hour,
			LockTTL:   30 * time.Second,
		},
		Persistence: Persistence{
			Driver: "memory",
			DSN:    "file:zspa.db?_pragma=busy_timeout(5000)",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (optional) and the environment on top of the defaults.
// A missing file at an explicitly given path is an error.
func Load(path string) (Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	overlayEnv(raw, environ)

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

var sections = map[string]bool{
	"server": true, "inference": true, "swap": true, "verifier": true,
	"poller": true, "store": true, "persistence": true, "log": true,
}

// overlayEnv writes ZSPA_<SECTION>_<KEY>=value pairs into raw. Variables
// naming an unknown section are ignored. NEAR_AI_API_KEY is honoured when
// ZSPA_INFERENCE_API_KEY is not set.
func overlayEnv(raw map[string]any, environ []string) {
	set := func(section, key, value string) {
		sec, ok := raw[section].(map[string]any)
		if !ok {
			sec = map[string]any{}
			raw[section] = sec
		}
		sec[key] = value
	}

	var alias string
	explicitKey := false
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name == "NEAR_AI_API_KEY" {
			alias = value
			continue
		}
		rest, ok := strings.CutPrefix(name, EnvPrefix)
		if !ok {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(rest), "_")
		if !ok || key == "" || !sections[section] {
			continue
		}
		if section == "inference" && key == "api_key" {
			explicitKey = true
		}
		set(section, key, value)
	}
	if alias != "" && !explicitKey {
		set("inference", "api_key", alias)
	}
}

// Validate checks the values that have no sensible fallback.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Persistence.Driver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("persistence.driver: unknown driver %q", c.Persistence.Driver))
	}
	if c.Poller.MaxRetries < 0 {
		errs = append(errs, errors.New("poller.max_retries must not be negative"))
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval must be positive"))
	}
	if c.Verifier.MaxRetries < 1 {
		errs = append(errs, errors.New("verifier.max_retries must be at least 1"))
	}
	if c.Server.MaxInputSize <= 0 {
		errs = append(errs, errors.New("server.max_input_size must be positive"))
	}
	return errors.Join(errs...)
}
