package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/geoctl/internal/api"
	"github.com/danmuck/geoctl/internal/auth"
	"github.com/danmuck/geoctl/internal/config"
	"github.com/danmuck/geoctl/internal/engine"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/state"
	"github.com/danmuck/geoctl/internal/store"
	"github.com/danmuck/geoctl/internal/store/builtin"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration engine and its intent API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultServiceConfig()
			if configPath != "" {
				loaded, err := loadServiceConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
				log.Info().Str("path", configPath).Msg("loaded geoctl config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "engine config path (toml)")
	return cmd
}

func newStoreCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Run the reference persistence store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultStoreConfig()
			if path != "" {
				loaded, err := config.LoadStoreConfig(path)
				if err != nil {
					return err
				}
				cfg = loaded
				log.Info().Str("path", path).Msg("loaded store config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStore(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "store config path (toml)")
	return cmd
}

// openStore opens the configured backend behind a Service.
func openStore(cfg config.StoreConfig) (*store.Service, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = builtin.DefaultBackend
	}
	b, err := builtin.Registry().Open(backend, store.BackendConfig{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("open store backend: %w", err)
	}
	return store.NewService(b), nil
}

func validator(token string) auth.Validator {
	if token == "" {
		return nil
	}
	return auth.StaticToken{Token: token}
}

func runStore(ctx context.Context, cfg config.StoreConfig) error {
	svc, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Backend().Close(); err != nil {
			log.Warn().Err(err).Msg("store backend close")
		}
	}()
	srv := store.NewServer(svc, store.ServerOptions{
		ID:          cfg.ID,
		Addr:        cfg.Addr,
		CORSOrigins: cfg.CorsOrigins,
		Validator:   validator(cfg.AuthToken),
	})
	return srv.Serve(ctx)
}

// buildGateway returns the instrumented gateway plus a cleanup func.
func buildGateway(cfg config.ServiceConfig) (gateway.Gateway, func(), error) {
	switch cfg.Gateway.Mode {
	case config.GatewayLocal:
		svc, err := openStore(cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := svc.Backend().Close(); err != nil {
				log.Warn().Err(err).Msg("embedded store close")
			}
		}
		return gateway.Instrument(cfg.ID, gateway.NewLocal(svc)), closeFn, nil
	default:
		timeout, err := cfg.Gateway.TimeoutDuration()
		if err != nil {
			return nil, nil, err
		}
		client, err := gateway.NewClient(gateway.ClientOptions{
			BaseURL: cfg.Gateway.BaseURL,
			Token:   cfg.Gateway.Token,
			Timeout: timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return gateway.Instrument(cfg.ID, client), func() {}, nil
	}
}

func runEngine(ctx context.Context, cfg config.ServiceConfig) error {
	gw, closeGateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	defer closeGateway()

	st := state.NewStore(state.Snapshot{StoreURL: cfg.Gateway.BaseURL})
	eng := engine.New(gw, st, engine.Options{
		Node:         cfg.ID,
		BaseURL:      cfg.Gateway.BaseURL,
		Limit:        cfg.FanoutLimit,
		DetailsLimit: cfg.DetailsLimit,
	})
	srv := api.NewServer(eng, st, api.Options{
		ID:          cfg.ID,
		Addr:        cfg.Addr,
		CORSOrigins: cfg.CorsOrigins,
		Validator:   validator(cfg.AuthToken),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx) })
	log.Info().
		Str("node", cfg.ID).
		Str("gateway", cfg.Gateway.Mode).
		Str("store", cfg.Gateway.BaseURL).
		Msg("geoctl started")
	return g.Wait()
}
