package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillforge/skillforge/internal/api"
	"github.com/skillforge/skillforge/internal/auth"
	"github.com/skillforge/skillforge/internal/broadcast"
	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/config"
	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
	"github.com/skillforge/skillforge/internal/observability"
	"github.com/skillforge/skillforge/internal/ranking"
	"github.com/skillforge/skillforge/internal/ratelimit"
	"github.com/skillforge/skillforge/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the skillforge API service",
		Long:  "Run the HTTP service exposing leaderboards, rate limiting and token revocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.LoadFromFile(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			config.LoadFromEnv(cfg)
			if listenAddr != "" {
				cfg.Server.Addr = listenAddr
			}
			if logLevel != "" {
				cfg.Server.LogLevel = logLevel
			}

			logging.InitStructured(cfg.Server.LogFormat, cfg.Server.LogLevel)

			ctx := context.Background()

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Telemetry.Enabled,
				Endpoint:    cfg.Telemetry.Endpoint,
				ServiceName: "skillforge",
				SampleRate:  cfg.Telemetry.SampleRate,
			}); err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer observability.Shutdown(ctx)

			cacheStore := cache.New(cache.StoreOptions{
				MaxSize:       cfg.Cache.MaxSize,
				SweepInterval: time.Duration(cfg.Cache.SweepSeconds) * time.Second,
			})
			defer cacheStore.Close()

			metrics.Init("skillforge", func() (int, int64) {
				st := cacheStore.Stats()
				return st.Size, st.ApproxMemory
			})
			cacheStore.OnEvict(metrics.RecordCacheEviction)

			facade := cache.NewFacade(cacheStore)

			pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			var broadcaster ranking.Broadcaster = broadcast.Nop{}
			if cfg.Broadcast.Enabled {
				rb, err := broadcast.NewRedis(ctx, broadcast.Config{
					Addr:     cfg.Broadcast.Addr,
					Password: cfg.Broadcast.Password,
					DB:       cfg.Broadcast.DB,
				})
				if err != nil {
					return fmt.Errorf("connect broadcast redis: %w", err)
				}
				defer rb.Close()
				broadcaster = rb
			}

			validator, err := auth.NewJWTValidator(auth.JWTConfig{
				Algorithm:     cfg.JWT.Algorithm,
				Secret:        cfg.JWT.Secret,
				PublicKeyFile: cfg.JWT.PublicKeyFile,
				Issuer:        cfg.JWT.Issuer,
			})
			if err != nil {
				return fmt.Errorf("init jwt validator: %w", err)
			}
			revocation := auth.NewRevocationStore(cacheStore)

			engine := ranking.NewEngine(pg, facade, broadcaster, cfg.Leaderboard.TopN)
			limiter := ratelimit.New(cacheStore, ratelimit.PoliciesForEnv(cfg.Env))

			mux := http.NewServeMux()
			handler := &api.Handler{
				Engine:     engine,
				Store:      pg,
				Cache:      cacheStore,
				Validator:  validator,
				Revocation: revocation,
			}
			handler.RegisterRoutes(mux)

			publicPaths := []string{"/healthz", "/metrics"}
			chain := api.RequestID(
				observability.HTTPMiddleware(
					auth.Middleware(validator, revocation)(
						ratelimit.Middleware(limiter, nil, publicPaths)(mux),
					),
				),
			)

			httpServer := &http.Server{
				Addr:    cfg.Server.Addr,
				Handler: chain,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("skillforge service started",
					"addr", cfg.Server.Addr, "env", cfg.Env,
					"broadcast", cfg.Broadcast.Enabled)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Op().Info("shutdown signal received", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown server: %w", err)
				}
				return nil
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (JSON or YAML)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address override")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override")

	return cmd
}
