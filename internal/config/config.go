// Package config loads gateway configuration from config.yaml and
// DOCQA_-prefixed environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upload    UploadConfig    `koanf:"upload"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	RAG       RAGConfig       `koanf:"rag"`
	Session   SessionConfig   `koanf:"session"`
	Audit     AuditConfig     `koanf:"audit"`
	Auth      AuthConfig      `koanf:"auth"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeout bounds an entire request, including the downstream
	// call. Duration string like "5m".
	RequestTimeout string `koanf:"request_timeout"`
}

func (c ServerConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(c.RequestTimeout, 5*time.Minute)
}

type UploadConfig struct {
	// Dir is the upload staging root. Every temporary file lives under it
	// and is removed by the request that created it.
	Dir               string   `koanf:"dir"`
	MaxBytes          int64    `koanf:"max_bytes"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// Quota is a fixed-window budget for one route.
type Quota struct {
	Max    int    `koanf:"max"`
	Window string `koanf:"window"`
}

func (q Quota) WindowDuration() time.Duration {
	return parseDuration(q.Window, 15*time.Minute)
}

type RateLimitConfig struct {
	Upload    Quota `koanf:"upload"`
	Ask       Quota `koanf:"ask"`
	Summarize Quota `koanf:"summarize"`
	Compare   Quota `koanf:"compare"`
}

type RAGConfig struct {
	BaseURL string `koanf:"base_url"`
	// CallTimeout bounds upload/ask/summarize/compare calls, which may
	// trigger expensive processing downstream.
	CallTimeout string `koanf:"call_timeout"`
	// HealthTimeout bounds the readiness probe against the downstream.
	HealthTimeout string `koanf:"health_timeout"`
}

func (c RAGConfig) CallTimeoutDuration() time.Duration {
	return parseDuration(c.CallTimeout, 3*time.Minute)
}

func (c RAGConfig) HealthTimeoutDuration() time.Duration {
	return parseDuration(c.HealthTimeout, 3*time.Second)
}

type SessionConfig struct {
	// IdleTTL is the sliding idle expiry for sessions.
	IdleTTL string `koanf:"idle_ttl"`
	// SweepInterval is how often the expiry janitor runs.
	SweepInterval string `koanf:"sweep_interval"`
}

func (c SessionConfig) IdleTTLDuration() time.Duration {
	return parseDuration(c.IdleTTL, time.Hour)
}

func (c SessionConfig) SweepIntervalDuration() time.Duration {
	return parseDuration(c.SweepInterval, 5*time.Minute)
}

type AuditConfig struct {
	// Enabled turns on proxy-call recording to SQLite.
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type AuthConfig struct {
	// JWTSecret, when set, lets the gateway derive the rate-limit identity
	// from a bearer token issued by the upstream auth layer. Tokens are
	// optional; requests without one are keyed by remote address.
	JWTSecret string `koanf:"jwt_secret"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Default values; file and env loads below override them.
	k.Set("server.port", 8080)
	k.Set("server.request_timeout", "5m")
	k.Set("upload.dir", "uploads")
	k.Set("upload.max_bytes", 20<<20)
	k.Set("upload.allowed_extensions", []string{"pdf", "docx", "txt", "md"})
	k.Set("rate_limit.upload.max", 5)
	k.Set("rate_limit.upload.window", "15m")
	k.Set("rate_limit.ask.max", 30)
	k.Set("rate_limit.ask.window", "15m")
	k.Set("rate_limit.summarize.max", 10)
	k.Set("rate_limit.summarize.window", "15m")
	k.Set("rate_limit.compare.max", 10)
	k.Set("rate_limit.compare.window", "15m")
	k.Set("rag.base_url", "http://localhost:8000")
	k.Set("rag.call_timeout", "3m")
	k.Set("rag.health_timeout", "3s")
	k.Set("session.idle_ttl", "1h")
	k.Set("session.sweep_interval", "5m")
	k.Set("audit.enabled", false)
	k.Set("audit.path", "./data/gateway.db")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use defaults and env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("DOCQA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DOCQA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
