package config

import (
	"errors"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IMPORT_BATCH_SIZE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ImportBatchSize != 50 || cfg.ImportLineBatch != 200 || cfg.ImportMaxRows != 20000 {
		t.Fatalf("unexpected import defaults %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if !errors.Is(cfg.RequireDatabase(), ErrMissingDatabaseURL) {
		t.Fatalf("expected missing database error")
	}
}

func TestLoadRejectsBatchSizeOutOfRange(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "5000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected batch size error")
	}
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("IMPORT_PAGE_SIZE", "lots")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ImportPageSize != 1000 {
		t.Fatalf("expected fallback page size, got %d", cfg.ImportPageSize)
	}
}
