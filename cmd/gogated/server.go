package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/config"
	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/internal/db"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
)

type serveOptions struct {
	dev           bool
	adminPassword string
	userPassword  string
}

const (
	readHeaderTimeout = 5 * time.Second
)

func runServe(ctx context.Context, opts serveOptions, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger(os.Stdout)
	if err != nil {
		return err
	}

	if opts.dev && cfg.Token.SigningKey == "" && cfg.Token.SigningKeyPEM == "" {
		key, err := internal.NewSecret(32)
		if err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		cfg.Token.SigningKey = key
		logger.Warn("using a generated signing key; tokens will not survive a restart")
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(cfg.RedisURL, opts.dev)
	if err != nil {
		return err
	}
	defer closeRedis()

	creds := goGate.NewMemoryCredentialStore()
	media := newMediaStore()

	builder := goGate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithOwnershipResolver(media).
		WithAuditSink(goGate.NewSlogSink(logger)).
		WithLogger(logger)

	if cfg.DatabaseURL != "" {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{}, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		cache := session.NewRedisRepository(rdb, session.RedisOptions{
			Prefix:       engineCfg.Session.RedisPrefix,
			TombstoneTTL: engineCfg.Session.TombstoneTTL,
			MaxEntryTTL:  engineCfg.Session.IdleTimeout,
		})
		builder = builder.
			WithSessionRepository(session.NewCachedRepository(session.NewPostgresRepository(pool), cache, logger)).
			WithGrantStore(permission.NewPostgresGrantStore(pool))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	logSecurityReport(logger, engine.SecurityReport())

	if err := seed(engine, creds, media, opts, out); err != nil {
		return err
	}

	srv := &server{
		engine:        engine,
		media:         media,
		metrics:       prometheus.NewExporter(engine).Handler(),
		ping:          func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		secureCookies: !opts.dev,
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(srv, cfg.CORSOrigins),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.PurgeSchedule, func() { purge(ctx, engine, logger) }); err != nil {
		return fmt.Errorf("purge schedule %q: %w", cfg.PurgeSchedule, err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRedis(url string, dev bool) (redis.UniversalClient, func(), error) {
	if dev && url == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil
	}
	if url == "" {
		return nil, nil, errors.New("GOGATE_REDIS_URL is required without --dev")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	return rdb, func() { _ = rdb.Close() }, nil
}

func purge(ctx context.Context, engine *goGate.Engine, logger *slog.Logger) {
	n, err := engine.PurgeExpired(ctx)
	if err != nil {
		logger.Warn("session purge failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("purged expired sessions", "count", n)
	}
}

func logSecurityReport(logger *slog.Logger, r goGate.SecurityReport) {
	logger.Info("security posture",
		"signing_algorithm", r.SigningAlgorithm,
		"idle_timeout", r.IdleTimeout,
		"absolute_lifetime", r.AbsoluteLifetime,
		"strict_device_trust", r.StrictDeviceTrust,
		"rate_limiting", r.RateLimitingActive,
		"csrf", r.CSRFActive,
		"csrf_session_bound", r.CSRFSessionBound,
		"audit", r.AuditActive,
	)
	for _, f := range r.Findings {
		logger.Warn("security finding", "finding", f)
	}
}

// seed registers one admin and one user with a media item each. Generated
// passwords are written to out once.
func seed(engine *goGate.Engine, creds *goGate.MemoryCredentialStore, media *mediaStore, opts serveOptions, out io.Writer) error {
	accounts := []struct {
		principal goGate.Principal
		password  string
	}{
		{goGate.Principal{UserID: "u-admin", Identifier: "admin@example.com", Role: permission.RoleAdmin}, opts.adminPassword},
		{goGate.Principal{UserID: "u-user", Identifier: "user@example.com", Role: permission.RoleUser}, opts.userPassword},
	}

	for _, acct := range accounts {
		pw := acct.password
		if pw == "" {
			generated, err := internal.NewSecret(18)
			if err != nil {
				return fmt.Errorf("generate password: %w", err)
			}
			pw = generated
			fmt.Fprintf(out, "seeded %s with password %s\n", acct.principal.Identifier, pw)
		}
		hash, err := engine.HashPassword(pw)
		if err != nil {
			return fmt.Errorf("seed %s: %w", acct.principal.Identifier, err)
		}
		p := acct.principal
		p.PasswordHash = hash
		creds.Put(p)
	}

	media.Put(mediaItem{ID: "m-admin", OwnerID: "u-admin", Title: "Admin upload"})
	media.Put(mediaItem{ID: "m-user", OwnerID: "u-user", Title: "User upload"})
	return nil
}
