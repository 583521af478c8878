package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/geoctl/internal/config"
)

type fileConfig struct {
	ID           string   `toml:"id"`
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	AuthToken    string   `toml:"auth_token"`
	DetailsLimit int      `toml:"details_limit"`
	FanoutLimit  int      `toml:"fanout_limit"`
	Gateway      struct {
		Mode    string `toml:"mode"`
		BaseURL string `toml:"base_url"`
		Token   string `toml:"token"`
		Timeout string `toml:"timeout"`
	} `toml:"gateway"`
	Store struct {
		Backend    string `toml:"backend"`
		Path       string `toml:"path"`
		InMemory   bool   `toml:"in_memory"`
		SyncWrites bool   `toml:"sync_writes"`
	} `toml:"store"`
}

// loadServiceConfig overlays the keys present in path onto the defaults.
func loadServiceConfig(path string) (config.ServiceConfig, error) {
	cfg := config.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.ServiceConfig{}, fmt.Errorf("load geoctl config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("details_limit") {
		cfg.DetailsLimit = raw.DetailsLimit
	}
	if meta.IsDefined("fanout_limit") {
		cfg.FanoutLimit = raw.FanoutLimit
	}

	if meta.IsDefined("gateway", "mode") {
		cfg.Gateway.Mode = strings.ToLower(strings.TrimSpace(raw.Gateway.Mode))
	}
	if meta.IsDefined("gateway", "base_url") {
		cfg.Gateway.BaseURL = strings.TrimSpace(raw.Gateway.BaseURL)
	}
	if meta.IsDefined("gateway", "token") {
		cfg.Gateway.Token = strings.TrimSpace(raw.Gateway.Token)
	}
	if meta.IsDefined("gateway", "timeout") {
		cfg.Gateway.Timeout = strings.TrimSpace(raw.Gateway.Timeout)
	}

	if meta.IsDefined("store", "backend") {
		cfg.Store.Backend = strings.TrimSpace(raw.Store.Backend)
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("store", "in_memory") {
		cfg.Store.InMemory = raw.Store.InMemory
	}
	if meta.IsDefined("store", "sync_writes") {
		cfg.Store.SyncWrites = raw.Store.SyncWrites
	}

	if err := config.ValidateServiceConfig(cfg); err != nil {
		return config.ServiceConfig{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
