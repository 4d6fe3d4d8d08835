package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "MAX_CONCURRENT_EXTRACT", "BATCH_TIMEOUT", "DEFAULT_CHUNK_SIZE", "DEFAULT_CHUNK_OVERLAP", "SESSION_TTL", "PLANS_FILE"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.MaxConcurrentExtract != 5 {
		t.Errorf("expected 5 concurrent extracts, got %d", cfg.MaxConcurrentExtract)
	}
	if cfg.BatchTimeout != 5*time.Minute {
		t.Errorf("expected 5m batch timeout, got %v", cfg.BatchTimeout)
	}
	if cfg.DefaultChunkSize != 50000 || cfg.DefaultChunkOverlap != 500 {
		t.Errorf("unexpected chunk defaults %d/%d", cfg.DefaultChunkSize, cfg.DefaultChunkOverlap)
	}
	if cfg.PlansFile != "" {
		t.Errorf("expected no plans file, got %q", cfg.PlansFile)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT_EXTRACT", "12")
	t.Setenv("BATCH_TIMEOUT", "90s")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")
	t.Setenv("PLANS_FILE", "/etc/chunkwise/plans.yaml")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Port)
	}
	if cfg.MaxConcurrentExtract != 12 {
		t.Errorf("expected 12, got %d", cfg.MaxConcurrentExtract)
	}
	if cfg.BatchTimeout != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.BatchTimeout)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("expected 10m, got %v", cfg.SessionTTL)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback disabled")
	}
	if cfg.PlansFile != "/etc/chunkwise/plans.yaml" {
		t.Errorf("unexpected plans file %q", cfg.PlansFile)
	}
}

func TestLoad_ClampsInvalidValues(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_EXTRACT", "0")
	t.Setenv("DEFAULT_CHUNK_SIZE", "1000")
	t.Setenv("DEFAULT_CHUNK_OVERLAP", "1000")
	t.Setenv("MAX_SESSIONS", "-3")
	t.Setenv("BATCH_TIMEOUT", "not-a-duration")

	cfg := Load()
	if cfg.MaxConcurrentExtract != 5 {
		t.Errorf("expected clamp to 5, got %d", cfg.MaxConcurrentExtract)
	}
	if cfg.DefaultChunkOverlap != 100 {
		t.Errorf("expected overlap clamped below size, got %d", cfg.DefaultChunkOverlap)
	}
	if cfg.MaxSessions != 100 {
		t.Errorf("expected 100 sessions, got %d", cfg.MaxSessions)
	}
	if cfg.BatchTimeout != 5*time.Minute {
		t.Errorf("expected fallback timeout, got %v", cfg.BatchTimeout)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Error("expected error without keys")
	}
	if err := (Config{APIKey: "k"}).Validate(); err == nil {
		t.Error("expected error without Anthropic key")
	}
	if err := (Config{APIKey: "k", AnthropicAPIKey: "a"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
