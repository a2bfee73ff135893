// Command server runs the ARMi backend: the scheduled-text lifecycle API,
// the notification-response dispatcher, and the birthday reconciliation
// sweeper, all behind a single Gin HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/armi-app/armi-server/internal/config"
	httpapi "github.com/armi-app/armi-server/internal/http"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/observability"
	"github.com/armi-app/armi-server/internal/repo"
	"github.com/armi-app/armi-server/internal/services"
	"github.com/armi-app/armi-server/internal/sms"
	"github.com/armi-app/armi-server/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	sched := notify.NewLocalScheduler()
	defer sched.Close()

	composer := &sms.GatewayComposer{
		URL:    cfg.SMSGatewayURL,
		Token:  cfg.SMSGatewayToken,
		Client: &http.Client{Timeout: cfg.SMSGatewayTimeout},
	}

	r := gin.New()
	dispatcher := httpapi.RegisterRoutes(r, db, sched, composer, cfg)

	// Route scheduler deliveries into the dispatcher.
	unsubscribe := sched.Subscribe(dispatcher.HandleResponse)
	defer unsubscribe()

	// Reconcile birthday automations once at startup, then on a ticker.
	sweeper := &services.SweepService{DB: db, Scheduler: sched}
	go sweeper.Start(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
