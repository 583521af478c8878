package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Gateway modes.
const (
	GatewayHTTP  = "http"
	GatewayLocal = "local"
)

const (
	DefaultEngineAddr     = ":9200"
	DefaultStoreAddr      = ":9300"
	DefaultStoreURL       = "http://localhost:9300"
	DefaultBackend        = "store.memory"
	DefaultGatewayTimeout = 10 * time.Second
	DefaultDetailsLimit   = 500000
)

// ServiceConfig configures the engine node.
type ServiceConfig struct {
	ID           string        `toml:"id"`
	Addr         string        `toml:"addr"`
	CorsOrigins  []string      `toml:"cors_origins"`
	AuthToken    string        `toml:"auth_token"`
	DetailsLimit int           `toml:"details_limit"`
	FanoutLimit  int           `toml:"fanout_limit"`
	Gateway      GatewayConfig `toml:"gateway"`
	// Store is opened in-process when Gateway.Mode is local.
	Store StoreConfig `toml:"store"`
}

// GatewayConfig selects how the engine reaches the store.
type GatewayConfig struct {
	Mode    string `toml:"mode"`
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Timeout string `toml:"timeout"`
}

// StoreConfig configures a store node or the embedded store.
type StoreConfig struct {
	ID          string   `toml:"id"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
	Backend     string   `toml:"backend"`
	Path        string   `toml:"path"`
	InMemory    bool     `toml:"in_memory"`
	SyncWrites  bool     `toml:"sync_writes"`
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:           "geoctl",
		Addr:         DefaultEngineAddr,
		DetailsLimit: DefaultDetailsLimit,
		Gateway: GatewayConfig{
			Mode:    GatewayHTTP,
			BaseURL: DefaultStoreURL,
			Timeout: DefaultGatewayTimeout.String(),
		},
		Store: DefaultStoreConfig(),
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		ID:      "geostore",
		Addr:    DefaultStoreAddr,
		Backend: DefaultBackend,
	}
}

// TimeoutDuration parses Timeout, falling back to DefaultGatewayTimeout.
func (g GatewayConfig) TimeoutDuration() (time.Duration, error) {
	raw := strings.TrimSpace(g.Timeout)
	if raw == "" {
		return DefaultGatewayTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("gateway timeout: %w", err)
	}
	return d, nil
}

func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServiceConfig{}, err
	}
	if err := ValidateServiceConfig(cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

func LoadStoreConfig(path string) (StoreConfig, error) {
	cfg := DefaultStoreConfig()
	if err := loadToml(path, &cfg); err != nil {
		return StoreConfig{}, err
	}
	if err := ValidateStoreConfig(cfg); err != nil {
		return StoreConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServiceConfig(cfg ServiceConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("service config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("service config missing addr")
	}
	if cfg.DetailsLimit < 0 {
		return fmt.Errorf("service config details_limit must not be negative")
	}
	if cfg.FanoutLimit < 0 {
		return fmt.Errorf("service config fanout_limit must not be negative")
	}
	if err := ValidateGatewayConfig(cfg.Gateway); err != nil {
		return fmt.Errorf("gateway invalid: %w", err)
	}
	if cfg.Gateway.Mode == GatewayLocal {
		if err := ValidateStoreConfig(cfg.Store); err != nil {
			return fmt.Errorf("store invalid: %w", err)
		}
	}
	return nil
}

func ValidateGatewayConfig(cfg GatewayConfig) error {
	switch cfg.Mode {
	case GatewayHTTP, GatewayLocal:
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("base_url must be http(s): %q", base)
	}
	if _, err := cfg.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func ValidateStoreConfig(cfg StoreConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("store config missing id")
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		return fmt.Errorf("store config missing backend")
	}
	if cfg.Backend != DefaultBackend && !cfg.InMemory && strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("store config path required for backend %s", cfg.Backend)
	}
	return nil
}
