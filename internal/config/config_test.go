package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tradersecho/internal/types"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBase != "http://127.0.0.1:8000" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.Window != "5m" {
		t.Errorf("Window = %q, want 5m", cfg.Window)
	}
	if cfg.Retry.MaxAttempts != 8 {
		t.Errorf("Retry.MaxAttempts = %d, want 8", cfg.Retry.MaxAttempts)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `api_base: https://api.example.com/
data_dir: ` + dir + `
window: 15m
tickers: [aapl, tsla]
limit: 25
sort: mentions
baseline_grace: 2s
retry:
  initial: 500ms
  max: 10s
  max_attempts: 3
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRADERSECHO_WINDOW", "1m")
	t.Setenv("TRADERSECHO_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBase != "https://api.example.com" {
		t.Errorf("APIBase = %q, trailing slash should be trimmed", cfg.APIBase)
	}
	if cfg.Window != "1m" {
		t.Errorf("Window = %q, env should override file", cfg.Window)
	}
	if cfg.BaselineGrace != 2*time.Second {
		t.Errorf("BaselineGrace = %s, want 2s", cfg.BaselineGrace)
	}
	if cfg.Retry.Initial != 500*time.Millisecond || cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry = %+v", cfg.Retry)
	}

	f := cfg.Filter()
	if len(f.Tickers) != 2 || f.Tickers[0] != "AAPL" || f.Limit != 25 || f.Sort != types.SortMentions {
		t.Errorf("Filter = %+v", f)
	}
}

func TestLoadRejectsBadAPIBase(t *testing.T) {
	t.Setenv("TRADERSECHO_API_BASE", "ftp://example.com")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for ftp api base")
	}
	if !strings.Contains(err.Error(), "api_base") {
		t.Errorf("error = %v, want mention of api_base", err)
	}
}

func TestLoadEnvParseError(t *testing.T) {
	t.Setenv("TRADERSECHO_LIMIT", "ten")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env prefix, got %v", err)
	}
}

func TestValidateRetry(t *testing.T) {
	cfg := Default()
	cfg.Retry.Max = cfg.Retry.Initial / 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max < initial")
	}
}
