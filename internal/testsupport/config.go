package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Backend.BaseURL = "https://dispatch.test"
	cfg.Network.ProbeURL = cfg.Backend.BaseURL

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithBackendURL overrides the backend base URL on the test config.
func WithBackendURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.BaseURL = url
		cfg.Network.ProbeURL = url
	}
}

// WithMaxAttempts overrides both attempt ceilings on the test config.
func WithMaxAttempts(photo, action int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.PhotoMaxAttempts = photo
		cfg.Queue.ActionMaxAttempts = action
	}
}
