package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Upload.MaxBytes != 20<<20 {
			t.Errorf("Load() upload.max_bytes = %v, want %v", cfg.Upload.MaxBytes, 20<<20)
		}
		if got := len(cfg.Upload.AllowedExtensions); got != 4 {
			t.Errorf("Load() allowed extensions = %v, want 4 entries", cfg.Upload.AllowedExtensions)
		}
		if cfg.RateLimit.Upload.Max != 5 {
			t.Errorf("Load() rate_limit.upload.max = %v, want 5", cfg.RateLimit.Upload.Max)
		}
		if cfg.RateLimit.Ask.Max != 30 {
			t.Errorf("Load() rate_limit.ask.max = %v, want 30", cfg.RateLimit.Ask.Max)
		}
		if got := cfg.RateLimit.Ask.WindowDuration(); got != 15*time.Minute {
			t.Errorf("Load() ask window = %v, want 15m", got)
		}
		if cfg.RAG.BaseURL != "http://localhost:8000" {
			t.Errorf("Load() rag.base_url = %v, want http://localhost:8000", cfg.RAG.BaseURL)
		}
		if got := cfg.RAG.CallTimeoutDuration(); got != 3*time.Minute {
			t.Errorf("Load() rag call timeout = %v, want 3m", got)
		}
		if got := cfg.Session.IdleTTLDuration(); got != time.Hour {
			t.Errorf("Load() session idle ttl = %v, want 1h", got)
		}
		if cfg.Audit.Enabled {
			t.Error("Load() audit.enabled = true, want false")
		}
	})

	t.Run("env var overrides", func(t *testing.T) {
		t.Setenv("DOCQA_SERVER__PORT", "9000")
		t.Setenv("DOCQA_RAG__BASE_URL", "http://rag.internal:9090")
		t.Setenv("DOCQA_RATE_LIMIT__ASK__MAX", "3")
		t.Setenv("DOCQA_AUTH__JWT_SECRET", "s3cret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.RAG.BaseURL != "http://rag.internal:9090" {
			t.Errorf("Load() rag.base_url = %v, want http://rag.internal:9090", cfg.RAG.BaseURL)
		}
		if cfg.RateLimit.Ask.Max != 3 {
			t.Errorf("Load() rate_limit.ask.max = %v, want 3", cfg.RateLimit.Ask.Max)
		}
		if cfg.Auth.JWTSecret != "s3cret" {
			t.Errorf("Load() auth.jwt_secret = %v, want s3cret", cfg.Auth.JWTSecret)
		}
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{name: "valid", input: "30s", want: 30 * time.Second},
		{name: "empty falls back", input: "", want: time.Minute},
		{name: "garbage falls back", input: "soon", want: time.Minute},
		{name: "non-positive falls back", input: "-5s", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
