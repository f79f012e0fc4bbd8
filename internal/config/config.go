// Package config provides configuration for the companion commands.
// Values come from the environment, after dotenv files have been loaded.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAddr          = ":3000"
	DefaultBackendURL    = "http://localhost:3000"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultRealtimeModel = "gpt-realtime-mini"
	DefaultVisionModel   = "gpt-4o"
	DefaultQAModel       = "gpt-4o-mini"
	DefaultAgentConfig   = "generalAI"

	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"

	PrefsJSON   = "json"
	PrefsSQLite = "sqlite"
)

// Config holds all companion configuration.
type Config struct {
	// Environment is GO_ENV ("development", "production" or empty).
	Environment string
	LogLevel    string

	// Backend proxy side
	APIKey          string
	OpenAIBaseURL   string
	Addr            string
	UpstreamTimeout time.Duration

	// Companion client side
	BackendURL     string
	RealtimeModel  string
	VisionModel    string
	QAModel        string
	Transport      string
	AgentConfig    string
	AgentsFile     string
	PrefsBackend   string
	PrefsPath      string
	DashboardAddr  string
	CaptureCommand string
	AudioBackend   string
	ReconnectDelay time.Duration
	DevicePoll     time.Duration
}

// LoadDotenv loads dotenv files from dir. It reads ./env and ./.env, and in
// development also .env.local and .env.development. Variables already present
// in the environment are never overridden, so earlier files win.
func LoadDotenv(dir string) []string {
	files := []string{"env", ".env"}
	if os.Getenv("GO_ENV") == "development" {
		files = append(files, ".env.local", ".env.development")
	}

	var loaded []string
	for _, name := range files {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err != nil || st.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:     getEnv("GO_ENV", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		APIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		Addr:            getEnv("COMPANION_ADDR", DefaultAddr),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 120*time.Second),
		BackendURL:      strings.TrimSuffix(getEnv("COMPANION_BACKEND_URL", DefaultBackendURL), "/"),
		RealtimeModel:   getEnv("REALTIME_MODEL", DefaultRealtimeModel),
		VisionModel:     getEnv("VISION_MODEL", DefaultVisionModel),
		QAModel:         getEnv("QA_MODEL", DefaultQAModel),
		Transport:       strings.ToLower(getEnv("COMPANION_TRANSPORT", TransportWebRTC)),
		AgentConfig:     getEnv("AGENT_CONFIG", DefaultAgentConfig),
		AgentsFile:      getEnv("AGENTS_FILE", ""),
		PrefsBackend:    strings.ToLower(getEnv("PREFS_BACKEND", PrefsJSON)),
		PrefsPath:       getEnv("PREFS_PATH", ""),
		DashboardAddr:   getEnv("DASHBOARD_ADDR", ""),
		CaptureCommand:  getEnv("CAPTURE_COMMAND", ""),
		AudioBackend:    getEnv("AUDIO_BACKEND", "arecord"),
		ReconnectDelay:  getEnvDuration("RECONNECT_DELAY", 300*time.Millisecond),
		DevicePoll:      time.Duration(getEnvInt("DEVICE_POLL_SECONDS", 2)) * time.Second,
	}

	if cfg.PrefsPath == "" {
		cfg.PrefsPath = DefaultPrefsPath(cfg.PrefsBackend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("COMPANION_ADDR cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("COMPANION_BACKEND_URL cannot be empty")
	}
	switch c.Transport {
	case TransportWebRTC, TransportWebSocket:
	default:
		return fmt.Errorf("COMPANION_TRANSPORT must be %q or %q, got %q", TransportWebRTC, TransportWebSocket, c.Transport)
	}
	switch c.PrefsBackend {
	case PrefsJSON, PrefsSQLite:
	default:
		return fmt.Errorf("PREFS_BACKEND must be %q or %q, got %q", PrefsJSON, PrefsSQLite, c.PrefsBackend)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("RECONNECT_DELAY cannot be negative")
	}
	return nil
}

// IsDevelopment returns true when GO_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// HasAPIKey reports whether the upstream API key is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// DefaultPrefsPath returns the per-user preferences file for backend.
func DefaultPrefsPath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	name := "prefs.json"
	if backend == PrefsSQLite {
		name = "prefs.db"
	}
	return filepath.Join(dir, "go-companion", name)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
