package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coupon-share-service/internal/cache"
	"coupon-share-service/internal/redis"
	"coupon-share-service/internal/storage"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Duration decodes "10s"-style strings from both YAML and JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
	Links     LinksConfig     `json:"links" yaml:"links"`
	Token     TokenConfig     `json:"token" yaml:"token"`
	Render    RenderConfig    `json:"render" yaml:"render"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Cache     cache.Config    `json:"cache" yaml:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string   `json:"addr" yaml:"addr"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	RenderTimeout   Duration `json:"render_timeout" yaml:"render_timeout"`
	// TrustProxy takes the client address from X-Real-IP/X-Forwarded-For.
	// Enable only behind a reverse proxy that sets them.
	TrustProxy bool `json:"trust_proxy" yaml:"trust_proxy"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// LinksConfig controls the share page and how coupons are referenced.
type LinksConfig struct {
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"` // where this service is reachable
	ClaimURL      string `json:"claim_url" yaml:"claim_url"`             // share page redirect target
	Input         string `json:"input" yaml:"input"`                     // "code" or "token"
}

type TokenConfig struct {
	Secret string `json:"secret" yaml:"secret"`
}

type RenderConfig struct {
	Variant        string `json:"variant" yaml:"variant"`
	AssetDir       string `json:"asset_dir" yaml:"asset_dir"`
	CardBackground string `json:"card_background" yaml:"card_background"`
	FallbackImage  string `json:"fallback_image" yaml:"fallback_image"`
}

type StorageConfig struct {
	Driver string           `json:"driver" yaml:"driver"` // file, redis or s3
	Dir    string           `json:"dir" yaml:"dir"`
	Redis  redis.Config     `json:"redis" yaml:"redis"`
	S3     storage.S3Config `json:"s3" yaml:"s3"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps" yaml:"rps"`
	Burst int     `json:"burst" yaml:"burst"`
}

type LogConfig struct {
	Env   string `json:"env" yaml:"env"`
	Level string `json:"level" yaml:"level"`
}

const (
	InputCode  = "code"
	InputToken = "token"
)

// Default returns the configuration used when no file overrides a field.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":6667",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
			RenderTimeout:   Duration{5 * time.Second},
		},
		CORS: CORSConfig{AllowedOrigins: []string{"https://dev.api.kedaimaster.com"}},
		Links: LinksConfig{
			PublicBaseURL: "https://dev.coupon.kedaimaster.com",
			ClaimURL:      "https://dev.kedaimaster.com/?modal=claim-coupon",
			Input:         InputCode,
		},
		Render: RenderConfig{
			Variant:        "card",
			AssetDir:       "assets",
			CardBackground: "coupon-card.png",
			FallbackImage:  "404coupon.png",
		},
		Storage: StorageConfig{
			Driver: "file",
			Dir:    "uploads/coupon",
		},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Log:       LogConfig{Env: "production", Level: "info"},
	}
}

// Load reads path (YAML or JSON by extension) over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COUPON_TOKEN_SECRET"); v != "" {
		cfg.Token.Secret = v
	}
	if v := os.Getenv("COUPON_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("COUPON_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("COUPON_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Links.Input {
	case InputCode:
	case InputToken:
		if c.Token.Secret == "" {
			errs = append(errs, errors.New("token.secret is required when links.input is token"))
		}
	default:
		errs = append(errs, fmt.Errorf("links.input must be %q or %q", InputCode, InputToken))
	}
	switch c.Render.Variant {
	case "card", "simple":
	default:
		errs = append(errs, fmt.Errorf("render.variant must be card or simple, got %q", c.Render.Variant))
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file driver"))
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis driver"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be file, redis or s3, got %q", c.Storage.Driver))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}

	return errors.Join(errs...)
}
