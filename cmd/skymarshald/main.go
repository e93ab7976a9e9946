// skymarshald is the HTTP/WebSocket facade service: it wires every
// internal package into one gin router plus a firehose relay broadcast
// over /ws, grounded on the teacher's cmd/bsky-bot/main.go startup
// shape (signal-aware context, tint-colored slog, graceful shutdown).
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"

	"github.com/skymarshal/core/internal/api"
	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/auth"
	"github.com/skymarshal/core/internal/carimport"
	"github.com/skymarshal/core/internal/config"
	"github.com/skymarshal/core/internal/export"
	"github.com/skymarshal/core/internal/firehose"
	"github.com/skymarshal/core/internal/network"
	"github.com/skymarshal/core/internal/profilecache"
	"github.com/skymarshal/core/internal/session"
)

func newLogger() *slog.Logger {
	programLevel := &slog.LevelVar{}
	if os.Getenv("DEBUG") != "" {
		programLevel.Set(slog.LevelDebug)
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      programLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func openProfileCache(paths config.Paths) (profilecache.Cache, error) {
	if config.GetEnvOrDefault("PROFILE_CACHE_BACKEND", "sqlite") == "postgres" {
		return profilecache.OpenPostgres(profilecache.PostgresConfig{
			Host:     config.GetEnvOrDefault("PGHOST", "localhost"),
			Port:     config.GetEnvAsInt("PGPORT", 5432),
			User:     config.GetEnvOrDefault("PGUSER", "skymarshal"),
			Password: os.Getenv("PGPASSWORD"),
			DBName:   config.GetEnvOrDefault("PGDATABASE", "skymarshal"),
			SSLMode:  config.GetEnvOrDefault("PGSSLMODE", "disable"),
		})
	}
	return profilecache.OpenSQLite(paths.ProfileCacheSQLite())
}

func openRevocationStore(logger *slog.Logger) api.RevocationStore {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Warn("REDIS_URL not set, facade session revocation is in-memory only")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL, falling back to in-memory revocation store", "err", err)
		return nil
	}
	return api.NewRedisRevocationStore(redis.NewClient(opts))
}

func jwtSecret() []byte {
	if s := os.Getenv("FACADE_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	logger := newLogger()
	slog.SetDefault(logger)

	config.LoadDotEnv(".env")
	paths := config.DefaultPaths()
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return err
	}

	settings := config.NewSettingsManager(paths.Settings())

	client := atclient.New(atclient.Config{
		Handle:    os.Getenv("BLUESKY_HANDLE"),
		Password:  os.Getenv("BLUESKY_PASSWORD"),
		PDSHost:   config.GetEnvOrDefault("PDS_HOST", "https://bsky.social"),
		Timeout:   30 * time.Second,
		MaxPoints: 3000,
		Window:    5 * time.Minute,
	})

	authMgr := auth.NewManager(client, paths.SessionBlob())
	sessions := session.NewRegistry(24 * time.Hour)

	cache, err := openProfileCache(paths)
	if err != nil {
		return err
	}
	defer cache.Close()

	decoder := carimport.NewCARDecoder()
	exporter := export.New(client, decoder, paths.JSONExport, paths.CARBackup, settings.Settings.CategoryWorkers)
	contentStore := export.NewContentStore(exporter, client)

	fetcher := network.New(client, settings.Settings.CategoryWorkers)
	netCache, err := network.NewFetchCache(paths.NetworkCacheDir(), 15*time.Minute)
	if err != nil {
		return err
	}

	shares, err := api.OpenShareStore(paths.SharedPosts())
	if err != nil {
		return err
	}
	defer shares.Close()

	revocation := openRevocationStore(logger)

	app := api.NewApp(paths, settings, client, authMgr, sessions, cache, contentStore, exporter, fetcher, netCache, shares, revocation, jwtSecret())
	router := app.NewRouter()

	relay := firehose.NewRelay(firehose.NewIndigoSource(
		config.GetEnvOrDefault("FIREHOSE_URL", "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"),
		30*time.Second,
	), 200)
	relay.Start(ctx,
		func(p firehose.Post) { app.Hub.Broadcast("firehose:post", p) },
		func(s firehose.Stats) { app.Hub.Broadcast("firehose:stats", s) },
	)
	defer relay.Stop()

	addr := ":" + config.GetEnvOrDefault("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("skymarshald listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := mainImpl(); err != nil {
		slog.Error("skymarshald exited with error", "err", err)
		os.Exit(1)
	}
}
