package testsupport

import (
	"path/filepath"
	"testing"

	"cardforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories and fake
// API keys per test. It defaults common fields and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.OpenSea.APIKey = "test"
	cfgVal.OpenSea.Contract = "0x0000000000000000000000000000000000000001"
	cfgVal.OpenAI.APIKey = "test"
	cfgVal.GoAPI.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token the daemon API requires.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithContract overrides the collection contract address on the test config.
func WithContract(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenSea.Contract = address
	}
}

// WithNtfyTopic enables push notifications against the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.Generation = true
		b.cfg.Notifications.Errors = true
	}
}
