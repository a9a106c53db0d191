package sheetsync

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Ratio1/sheetsync_sdk_go/internal/config"
	"github.com/Ratio1/sheetsync_sdk_go/internal/devseed"
	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetstore"
)

const (
	envConfigFile = "SHEETSYNC_CONFIG"
	modeAuto      = "auto"
	modeHTTP      = "http"
	modeMock      = "mock"

	// MockEndpoint is the endpoint reported by clients running in mock mode.
	MockEndpoint = "http://sheetsync.mock/exec"
)

// Settings is the file and environment view of a client configuration.
type Settings struct {
	Mode          string        `yaml:"mode" env:"SHEETSYNC_MODE"`
	Endpoint      string        `yaml:"endpoint" env:"SHEETSYNC_ENDPOINT"`
	Strategy      string        `yaml:"strategy" env:"SHEETSYNC_STRATEGY"`
	Encoding      string        `yaml:"encoding" env:"SHEETSYNC_ENCODING"`
	Opaque        bool          `yaml:"opaque" env:"SHEETSYNC_OPAQUE"`
	NoCacheBust   bool          `yaml:"no_cache_bust" env:"SHEETSYNC_NO_CACHE_BUST"`
	ScriptTimeout time.Duration `yaml:"script_timeout" env:"SHEETSYNC_SCRIPT_TIMEOUT"`
	DefaultKey    string        `yaml:"default_key" env:"SHEETSYNC_DEFAULT_KEY"`
	MockSeed      string        `yaml:"mock_seed" env:"SHEETSYNC_MOCK_SEED"`
	MockPassword  string        `yaml:"mock_password" env:"SHEETSYNC_MOCK_PASSWORD"`
}

// LoadSettings reads the YAML file named by SHEETSYNC_CONFIG, if any, and
// applies .env files and environment overrides.
func LoadSettings() (*Settings, error) {
	s, err := config.Load[Settings](strings.TrimSpace(os.Getenv(envConfigFile)))
	if err != nil {
		return nil, fmt.Errorf("sheetsync: load settings: %w", err)
	}
	return s, nil
}

// Options translates s into client options. Endpoint and Mode are not
// included.
func (s Settings) Options() ([]Option, error) {
	strategy, err := ParseStrategy(s.Strategy)
	if err != nil {
		return nil, err
	}
	encoding, err := ParseEncoding(s.Encoding)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithStrategy(strategy),
		WithEncoding(encoding),
		WithCacheBust(!s.NoCacheBust),
	}
	if s.Opaque {
		opts = append(opts, WithOpaqueWrites(true))
	}
	if s.ScriptTimeout > 0 {
		opts = append(opts, WithScriptTimeout(s.ScriptTimeout))
	}
	if key := strings.TrimSpace(s.DefaultKey); key != "" {
		opts = append(opts, WithDefaultKey(key))
	}
	return opts, nil
}

// NewFromEnv builds a client from LoadSettings. It returns the resolved mode
// ("http" or "mock"). extra options are applied after the settings.
func NewFromEnv(extra ...Option) (*Client, string, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, "", err
	}
	return NewFromSettings(*s, extra...)
}

// NewFromSettings builds a client for s. Mode "auto" (or empty) selects http
// when an endpoint is configured and mock otherwise. Mock mode serves the
// backend contract in-process over a memory store.
func NewFromSettings(s Settings, extra ...Option) (*Client, string, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, "", err
	}
	endpoint := strings.TrimSpace(s.Endpoint)

	mode := strings.ToLower(strings.TrimSpace(s.Mode))
	switch mode {
	case "", modeAuto:
		if endpoint != "" {
			return newHTTPClient(endpoint, append(opts, extra...))
		}
		return newMockClient(s, append(opts, extra...))
	case modeHTTP:
		if endpoint == "" {
			return nil, "", fmt.Errorf("sheetsync: http mode requires SHEETSYNC_ENDPOINT")
		}
		return newHTTPClient(endpoint, append(opts, extra...))
	case modeMock:
		return newMockClient(s, append(opts, extra...))
	default:
		return nil, "", fmt.Errorf("sheetsync: unsupported SHEETSYNC_MODE value %q", mode)
	}
}

func newHTTPClient(endpoint string, opts []Option) (*Client, string, error) {
	c, err := New(endpoint, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("sheetsync: init http client: %w", err)
	}
	return c, modeHTTP, nil
}

func newMockClient(s Settings, opts []Option) (*Client, string, error) {
	store := sheetstore.NewMemoryStore()
	if path := strings.TrimSpace(s.MockSeed); path != "" {
		entries, err := devseed.LoadDocumentSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("sheetsync: load mock seed: %w", err)
		}
		if err := sheetstore.Seed(context.Background(), store, entries); err != nil {
			return nil, "", fmt.Errorf("sheetsync: apply mock seed: %w", err)
		}
	}

	handler := sheetstore.NewHandler(sheetstore.HandlerConfig{
		Store:      store,
		Password:   s.MockPassword,
		DefaultKey: s.DefaultKey,
	})
	httpClient := &http.Client{Transport: sheetstore.RoundTripper(handler.Engine())}

	// The in-process transport goes first so an explicit WithHTTPClient in
	// opts still wins.
	c, err := New(MockEndpoint, append([]Option{WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, "", fmt.Errorf("sheetsync: init mock client: %w", err)
	}
	return c, modeMock, nil
}
