package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/bizkeeper/internal/client/cli"
	"github.com/dmitrijs2005/bizkeeper/internal/client/client"
	"github.com/dmitrijs2005/bizkeeper/internal/client/config"
	"github.com/dmitrijs2005/bizkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/bizkeeper/internal/client/credentials"
	"github.com/dmitrijs2005/bizkeeper/internal/client/federated"
	"github.com/dmitrijs2005/bizkeeper/internal/client/metrics"
	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
	"github.com/dmitrijs2005/bizkeeper/internal/client/providers"
	"github.com/dmitrijs2005/bizkeeper/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/bizkeeper/internal/client/services"
	"github.com/dmitrijs2005/bizkeeper/internal/client/tokens"
	"github.com/dmitrijs2005/bizkeeper/internal/cryptox"
	"github.com/dmitrijs2005/bizkeeper/internal/logging"
	"github.com/go-chi/chi/v5"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, closeStore, err := openSecretStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenOpts := []tokens.Option{
		tokens.WithLeeway(cfg.TokenLeeway),
		tokens.WithLogger(logger.With("component", "tokens")),
	}
	if cfg.TokenVerifyKey != "" {
		tokenOpts = append(tokenOpts, tokens.WithVerifyKey([]byte(cfg.TokenVerifyKey)))
	}

	var (
		fed     providers.Federated
		pingers []connectivity.Pinger
	)
	if cfg.FederatedEnabled() {
		fc := federated.New(federated.Config{
			IssuerURL:    cfg.FederatedIssuerURL,
			ClientID:     cfg.FederatedClientID,
			ClientSecret: cfg.FederatedClientSecret,
			Scopes:       cfg.FederatedScopes,
			Timeout:      cfg.RequestTimeout,
		}, logger.With("component", "federated"))
		fed = fc
		pingers = append(pingers, fc)
		for _, p := range models.FederatedProviders() {
			tokenOpts = append(tokenOpts, tokens.WithIntrospector(p, fc))
		}
	}
	tokenStore := tokens.NewStore(store, tokenOpts...)

	// The direct backend only ever sees tokens it issued.
	directTokens := client.TokenSourceFunc(func(ctx context.Context) (string, error) {
		return tokenStore.AccessTokenFor(ctx, models.ProviderDirect)
	})
	direct, err := newDirectClient(cfg, directTokens)
	if err != nil {
		return err
	}
	defer direct.Close()
	pingers = append(pingers, direct)

	monitor := connectivity.NewMonitor(cfg.OnlineCheckInterval, cfg.RequestTimeout, logger.With("component", "connectivity"), pingers...)
	monitor.Check(ctx)

	recorder := metrics.NewRecorder()
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, recorder, logger)
		defer stopMetrics()
	}

	chain := providers.NewChain(direct, fed, cli.DevicePrompt(os.Stdout))
	manager := services.NewSessionManager(
		services.Settings{
			DemoEmail:               cfg.DemoEmail,
			DemoPassword:            cfg.DemoPassword,
			OfflineVerificationCode: cfg.OfflineVerificationCode,
		},
		chain,
		direct,
		credentials.NewCache(store),
		tokenStore,
		monitor,
		services.WithLogger(logger.With("component", "session")),
		services.WithRecorder(recorder),
	)

	if _, err := manager.Restore(ctx); err != nil {
		logger.Warn(ctx, "session restore failed", "error", err)
	}

	go monitor.Run(ctx)
	go manager.Watch(ctx, monitor)

	app := cli.NewApp(manager, manager.State(), os.Stdin, os.Stdout, logger)
	app.Run(ctx)
	return nil
}

func newLogger(cfg *config.Config) logging.Logger {
	switch cfg.LogFormat {
	case "zerolog":
		return logging.NewZerologLogger(os.Stderr, cfg.LogLevel, true)
	case "json":
		return logging.NewJSONSlog(os.Stderr, slogLevel(cfg.LogLevel))
	default:
		return logging.NewTextSlog(os.Stderr, slogLevel(cfg.LogLevel))
	}
}

func slogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// openSecretStore opens the configured backend. The returned func releases it.
func openSecretStore(ctx context.Context, cfg *config.Config) (secrets.Store, func(), error) {
	switch cfg.SecretStoreBackend {
	case config.BackendMemory:
		return secrets.NewMemoryStore(), func() {}, nil

	case config.BackendRedis:
		rc, err := secrets.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, err
		}
		const prefix = "bizkeeper:"
		var key []byte
		if cfg.DeviceSecret != "" {
			key = cryptox.DeriveKey([]byte(cfg.DeviceSecret), []byte(prefix))
		}
		return secrets.NewRedisStore(rc, prefix, key), func() { _ = rc.Close() }, nil

	default:
		db, err := client.InitDatabase(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing database: %w", err)
		}
		s, err := secrets.OpenSQLiteStore(ctx, db, []byte(cfg.DeviceSecret))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil
	}
}

func newDirectClient(cfg *config.Config, ts client.TokenSource) (client.Client, error) {
	if cfg.DirectTransport == config.TransportGRPC {
		return client.NewGRPCClient(cfg.DirectGRPCAddr, cfg.RequestTimeout, ts)
	}
	return client.NewHTTPClient(cfg.DirectEndpointURL, cfg.RequestTimeout, ts), nil
}

func serveMetrics(addr string, rec *metrics.Recorder, logger logging.Logger) (stop func()) {
	r := chi.NewRouter()
	r.Handle("/metrics", rec.Handler())

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
