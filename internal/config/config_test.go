package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "COMPANION_TRANSPORT", "PREFS_BACKEND", "COMPANION_BACKEND_URL", "RECONNECT_DELAY"} {
		t.Setenv(k, "")
	}
	t.Setenv("PREFS_PATH", filepath.Join(t.TempDir(), "prefs.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.RealtimeModel != "gpt-realtime-mini" {
		t.Errorf("RealtimeModel = %q", cfg.RealtimeModel)
	}
	if cfg.VisionModel != "gpt-4o" || cfg.QAModel != "gpt-4o-mini" {
		t.Errorf("models = %q/%q", cfg.VisionModel, cfg.QAModel)
	}
	if cfg.Transport != TransportWebRTC {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.ReconnectDelay != 300*time.Millisecond {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.HasAPIKey() {
		t.Error("HasAPIKey should be false with empty key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COMPANION_TRANSPORT", "WebSocket")
	t.Setenv("COMPANION_BACKEND_URL", "http://127.0.0.1:4000/")
	t.Setenv("PREFS_BACKEND", "sqlite")
	t.Setenv("PREFS_PATH", "")
	t.Setenv("RECONNECT_DELAY", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HasAPIKey() {
		t.Error("expected API key")
	}
	if cfg.Transport != TransportWebSocket {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.BackendURL != "http://127.0.0.1:4000" {
		t.Errorf("BackendURL = %q, trailing slash should be trimmed", cfg.BackendURL)
	}
	if !strings.HasSuffix(cfg.PrefsPath, "prefs.db") {
		t.Errorf("PrefsPath = %q, want sqlite default", cfg.PrefsPath)
	}
	if cfg.ReconnectDelay != time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
}

func TestValidate(t *testing.T) {
	t.Run("bad transport", func(t *testing.T) {
		t.Setenv("COMPANION_TRANSPORT", "carrier-pigeon")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unknown transport")
		}
	})
	t.Run("bad prefs backend", func(t *testing.T) {
		t.Setenv("COMPANION_TRANSPORT", "")
		t.Setenv("PREFS_BACKEND", "redis")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unknown prefs backend")
		}
	})
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "env"), []byte("COMPANION_TEST_A=from-env\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("COMPANION_TEST_A=from-dotenv\nCOMPANION_TEST_B=b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("COMPANION_TEST_C=local\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GO_ENV", "")
	t.Setenv("COMPANION_TEST_A", "")
	os.Unsetenv("COMPANION_TEST_A")
	t.Setenv("COMPANION_TEST_B", "")
	os.Unsetenv("COMPANION_TEST_B")
	t.Setenv("COMPANION_TEST_C", "")
	os.Unsetenv("COMPANION_TEST_C")

	loaded := LoadDotenv(dir)
	if len(loaded) != 2 {
		t.Fatalf("loaded %v, want env and .env only", loaded)
	}
	if got := os.Getenv("COMPANION_TEST_A"); got != "from-env" {
		t.Errorf("COMPANION_TEST_A = %q, first file should win", got)
	}
	if got := os.Getenv("COMPANION_TEST_B"); got != "b" {
		t.Errorf("COMPANION_TEST_B = %q", got)
	}
	if got := os.Getenv("COMPANION_TEST_C"); got != "" {
		t.Errorf(".env.local must only load in development, got %q", got)
	}
}
