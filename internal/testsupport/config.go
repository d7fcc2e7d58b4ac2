package testsupport

import (
	"path/filepath"
	"testing"

	"citelink/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ContentCacheDir = filepath.Join(base, "cache")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Zotero.APIKey = "test"
	cfg.Zotero.LibraryID = "12345"
	cfg.LLM.APIKey = "test"
	cfg.Batch.PausePollMillis = 10

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
