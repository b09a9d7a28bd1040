// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/auth"
	authpg "github.com/taskvault/taskvault/internal/auth/postgres"
	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/logging"
	"github.com/taskvault/taskvault/internal/mail"
	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/store"
	"github.com/taskvault/taskvault/internal/todo"
	todopg "github.com/taskvault/taskvault/internal/todo/postgres"
	"github.com/taskvault/taskvault/internal/web"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. The database must already be migrated
(see "taskvault migrate up"). SIGINT and SIGTERM trigger a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().String("http-addr", "", "API listen address (overrides http.addr)")
	cmd.Flags().String("metrics-addr", "", "metrics/health listen address, empty disables (overrides metrics.addr)")
	cmd.Flags().String("log-format", "", "log format: json or text (overrides log.format)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn or error (overrides log.level)")

	return cmd
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = openPool
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readiness, slog.Default())
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "validate configuration").Wrap(err)
	}
	signerCfg, err := cfg.SignerConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("taskvault", version, cfg.Log.Format, level)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting taskvault",
		"environment", cfg.Environment,
		"http_addr", cfg.HTTP.Addr,
	)

	opts := store.DefaultOpenOptions()
	if cfg.Database.ConnectTimeout > 0 {
		opts.ConnectTimeout = cfg.Database.ConnectTimeout
	}
	opts.Logger = logger
	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, opts)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	tokens := authpg.NewTokenRepository(pool)
	handler, err := buildAPI(cfg, signerCfg, pool, tokens, metrics, logger)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	srv := web.NewHTTPServer(cfg.HTTP.Addr, handler)
	errChan := make(chan error, 1)
	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	if cfg.Tokens.PruneInterval > 0 {
		go runPruneLoop(ctx, cfg.Tokens.PruneInterval, tokens, metrics, logger)
	}

	cmd.Println("TaskVault API started")
	logger.InfoContext(ctx, "api ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case serveErr := <-errChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// buildAPI wires repositories, services and the router.
func buildAPI(
	cfg *config.Config,
	signerCfg auth.SignerConfig,
	db store.DB,
	tokens auth.TokenRepository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (http.Handler, error) {
	signer, err := auth.NewTokenSigner(signerCfg)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return nil, err
	}

	users := authpg.NewUserRepository(db)
	hasher := auth.NewArgon2idHasher()

	sessions, err := auth.NewSessionService(users, tokens, hasher, signer, logger)
	if err != nil {
		return nil, err
	}
	resets, err := auth.NewPasswordResetService(users, tokens, hasher, signer, mailer, logger)
	if err != nil {
		return nil, err
	}
	todos, err := todo.NewService(todopg.NewRepository(db), logger)
	if err != nil {
		return nil, err
	}

	return web.NewRouter(web.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, web.Deps{
		Sessions: sessions,
		Resets:   resets,
		Todos:    todos,
		Metrics:  metrics,
		Logger:   logger,
	})
}

func newMailer(cfg *config.Config, logger *slog.Logger) (mail.Mailer, error) {
	if cfg.Mail.Driver == config.MailDriverSMTP {
		smtp, err := mail.NewSMTPMailer(cfg.SMTPConfig(), logger)
		if err != nil {
			return nil, err
		}
		return smtp, nil
	}
	logger.Warn("mail driver is log; reset links are written to the log", "driver", cfg.Mail.Driver)
	return mail.NewLogMailer(cfg.FrontendURL, logger), nil
}

func stopObservability(obsServer ObservabilityServer, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
