package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/auth"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/config"
	"github.com/manageconsole/manage/cmd/manage/internal/db/bunx"
	"github.com/manageconsole/manage/cmd/manage/internal/repository"
	"github.com/manageconsole/manage/cmd/manage/internal/server"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/telemetry"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// sessionSweepInterval is how often expired database sessions are purged.
const sessionSweepInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the manage console",
	Long:  `Starts the HTTP server that renders the manage console pages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := slog.Default()

		tel, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		sentryEnabled := cfg.Sentry.DSN != ""
		if sentryEnabled {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:              cfg.Sentry.DSN,
				Environment:      cfg.Sentry.Environment,
				Release:          "manage@" + Version,
				AttachStacktrace: true,
			}); err != nil {
				logger.Warn("Sentry initialization failed", "error", err)
				sentryEnabled = false
			} else {
				defer sentry.Flush(2 * time.Second)
			}
		}

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("create server metrics: %w", err)
		}
		upstreamMetrics, err := telemetry.NewUpstreamMetrics()
		if err != nil {
			return fmt.Errorf("create upstream metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("create auth metrics: %w", err)
		}

		store, closeStore, err := openSessionStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		sessions := session.NewManager(store, session.Options{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		})

		ts, err := clients.NewTokenSource(ctx, cfg.APIAuth)
		if err != nil {
			return fmt.Errorf("configure api authentication: %w", err)
		}
		httpClient := clients.NewHTTPClient(ctx, ts, cfg.HTTPTimeout)
		clientOpts := func(baseURL string) clients.Options {
			return clients.Options{BaseURL: baseURL, HTTPClient: httpClient, Metrics: upstreamMetrics}
		}

		accessClient, err := clients.NewAccessClient(clientOpts(cfg.Access.URL))
		if err != nil {
			return err
		}
		applicationsClient, err := clients.NewApplicationsClient(clientOpts(cfg.Applications.URL), cfg.ServiceCache.Size, cfg.ServiceCache.TTL)
		if err != nil {
			return err
		}
		organisationsClient, err := clients.NewOrganisationsClient(clientOpts(cfg.Organisations.URL))
		if err != nil {
			return err
		}
		searchClient, err := clients.NewSearchClient(clientOpts(cfg.Search.URL))
		if err != nil {
			return err
		}

		renderer, err := views.New()
		if err != nil {
			return fmt.Errorf("parse views: %w", err)
		}
		policy, err := auth.NewFeaturePolicy(cfg.Access.UserManagementRole)
		if err != nil {
			return fmt.Errorf("configure feature policy: %w", err)
		}

		var relyingParty *auth.RelyingParty
		if cfg.OIDC.Enabled() {
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.OIDC, cfg.Session.Secure)
			if err != nil {
				return fmt.Errorf("failed to create relying party: %w", err)
			}
			logger.Info("identity provider configured", "issuer", cfg.OIDC.Issuer)
		}

		r := server.NewRouter(server.RouterOptions{
			Access:               accessClient,
			Applications:         applicationsClient,
			Organisations:        organisationsClient,
			Search:               searchClient,
			Views:                renderer,
			Sessions:             sessions,
			Policy:               policy,
			Audit:                audit.NewSlogWriter(logger),
			RelyingParty:         relyingParty,
			ManageServiceID:      cfg.Access.ServiceID,
			ManageOrganisationID: cfg.Access.OrganisationID,
			UserManagementRole:   cfg.Access.UserManagementRole,
			SignedOutURL:         cfg.ServerURL,
			Metrics:              serverMetrics,
			AuthMetrics:          authMetrics,
			MetricsHandler:       tel.MetricsHandler(),
			EnableSentry:         sentryEnabled,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", cfg.ServerAddr, "url", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", "signal", sig.String())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

// openSessionStore connects the configured session backend. The returned
// func releases it.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("using redis session store", "addr", cfg.Redis.Addr)
		return session.NewRedisStore(client, cfg.Redis.Prefix), func() { _ = client.Close() }, nil

	default:
		db, err := bunx.NewDB(ctx, cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("using database session store", "type", bunx.DetectDatabaseType(cfg.DatabaseURL))

		repo := repository.NewBunSessionRepository(db)
		go sweepSessions(ctx, repo, logger)
		return repo, func() { _ = bunx.Close(db) }, nil
	}
}

// sweepSessions purges expired database sessions until ctx is done.
func sweepSessions(ctx context.Context, repo *repository.BunSessionRepository, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Error("expired session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
