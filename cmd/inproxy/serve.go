package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/admin"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/allowlist"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/api"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/cli"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/config"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/health"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/version"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/wellknown"
)

const redisPingTimeout = 5 * time.Second

func newServeCommand(flags *cli.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			zl := setupLogger(flags.Debug)
			defer func() { _ = zl.Sync() }()
			log := zl.Sugar()
			log.Infow("Starting inproxy", version.GetBuildInfo().Fields()...)
			flags.Print(log)

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				log.Errorw("Error loading inproxy configuration", "error", err)
				return err
			}
			flags.ApplyTo(&cfg, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, zl, cfg, flags); err != nil {
				log.Errorw("inproxy stopped with error", "error", err)
				return err
			}
			return nil
		},
	}
}

func serve(ctx context.Context, zl *zap.Logger, cfg config.Config, flags *cli.Config) error {
	log := zl.Sugar()

	store := allowlist.NewStore(log, cfg.Admin.StoragePath)
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	adminClient, err := admin.NewClient(log, admin.Options{
		BaseURL:                  cfg.Admin.BaseURL,
		CertificateAuthorityFile: cfg.Admin.CertificateAuthorityFile,
		InsecureSkipVerify:       cfg.Admin.InsecureSkipVerify,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	refresher := allowlist.NewRefresher(log, store, adminClient, cfg.Admin.RefreshInterval())
	refresher.Start(ctx)
	defer refresher.Stop()

	registry, err := newHealthRegistry(log, cfg.Health, refresher)
	if err != nil {
		return err
	}

	cache, closeCache, err := newCacheBackend(ctx, log, cfg.WellKnown)
	if err != nil {
		return err
	}
	defer closeCache()

	server, err := api.NewServer(zl, cfg, flags.Debug, api.Options{
		Allowlist:   store,
		Health:      registry,
		Cache:       cache,
		EnableHTTP2: flags.EnableHTTP2,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func newHealthRegistry(log *zap.SugaredLogger, cfg config.Health, refresher *allowlist.Refresher) (*health.Registry, error) {
	registry := health.NewRegistry()
	registry.Register("admin", health.RefreshIndicator(refresher))
	if len(cfg.CertificateFiles) == 0 {
		return registry, nil
	}
	infos, err := health.LoadCertificateInfos(cfg.CertificateFiles)
	if err != nil {
		return nil, err
	}
	registry.Register("certificates", health.NewCertificatesIndicator(log, infos, cfg.CertificateExpirationWarningPeriod))
	return registry, nil
}

// newCacheBackend returns the configured well-known cache and a func releasing it.
func newCacheBackend(ctx context.Context, log *zap.SugaredLogger, cfg config.WellKnown) (wellknown.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		// Cache errors are treated as misses, so an unreachable Redis is not fatal.
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warnw("Redis is not reachable, well-known responses will not be cached until it is", "address", cfg.Redis.Address, "error", err)
		}
		return wellknown.NewRedisBackend(client, cfg.Redis.KeyPrefix, cfg.TimeToLive), func() { _ = client.Close() }, nil
	case config.BackendMemory:
		backend := wellknown.NewMemoryBackend(cfg.TimeToLive, uint64(cfg.Size))
		backend.Start()
		return backend, backend.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown well-known cache backend %q", cfg.Backend)
	}
}
