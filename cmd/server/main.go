package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/nexusmsg/campaign-engine/config"
	"github.com/nexusmsg/campaign-engine/internal/alert"
	"github.com/nexusmsg/campaign-engine/internal/engine"
	"github.com/nexusmsg/campaign-engine/internal/gateway"
	"github.com/nexusmsg/campaign-engine/internal/health"
	"github.com/nexusmsg/campaign-engine/internal/infrastructure/postgres"
	ctxlog "github.com/nexusmsg/campaign-engine/internal/log"
	"github.com/nexusmsg/campaign-engine/internal/media"
	"github.com/nexusmsg/campaign-engine/internal/metrics"
	httptransport "github.com/nexusmsg/campaign-engine/internal/transport/http"
	"github.com/nexusmsg/campaign-engine/internal/transport/http/handler"
	"github.com/nexusmsg/campaign-engine/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		log.Fatalf("timezone %q: %v", cfg.SchedulerTimezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	campaignRepo := postgres.NewCampaignRepository(pool)
	outcomeRepo := postgres.NewOutcomeRepository(pool)
	mediaRepo := postgres.NewMediaRepository(pool)

	mediaStore, err := media.NewStore(cfg.MediaDir, mediaRepo, logger)
	if err != nil {
		stop()
		log.Fatalf("media store: %v", err)
	}

	// Gateway client and its supervisor. The supervisor owns the recovery
	// budget; the health probe it needs comes from a bare client so the two
	// can reference each other without a cycle.
	alerter := alert.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertEmail, logger)
	probe := gateway.NewClient(cfg.GatewayBaseURL, nil, logger,
		time.Duration(cfg.GatewaySendTimeout)*time.Second,
		time.Duration(cfg.GatewayInitTimeout)*time.Second)
	supervisor := gateway.NewSupervisor(gateway.SupervisorConfig{
		MaxAttempts: cfg.GatewayMaxRestarts,
		Window:      time.Duration(cfg.GatewayRestartWindow) * time.Second,
		Cooldown:    time.Duration(cfg.GatewayRestartCooldown) * time.Second,
		FreePortCmd: cfg.GatewayFreePortCmd,
		RestartCmd:  cfg.GatewayRestartCmd,
	}, probe.Health, alerter, logger)
	gw := gateway.NewClient(cfg.GatewayBaseURL, supervisor, logger,
		time.Duration(cfg.GatewaySendTimeout)*time.Second,
		time.Duration(cfg.GatewayInitTimeout)*time.Second)

	// Engine: scheduler and runner reference each other, so the fire handler
	// is bound after both exist.
	sched := engine.NewScheduler(loc, logger)
	runner := engine.NewRunner(campaignRepo, outcomeRepo, mediaStore, gw, sched, logger)
	sched.SetHandler(runner.Fire)

	campaignUsecase := usecase.NewCampaignUsecase(campaignRepo, outcomeRepo, runner, sched, gw, logger)
	campaignHandler := handler.NewCampaignHandler(campaignUsecase, logger)
	mediaHandler := handler.NewMediaHandler(mediaStore, logger)

	metrics.Register()
	checker := health.NewChecker(pool, probe.Health, logger, prometheus.DefaultRegisterer)

	// Rebuild timers and resume interrupted runs before accepting traffic.
	bootstrapper := engine.NewBootstrapper(campaignRepo, runner, sched, logger)
	if err := bootstrapper.Restore(ctx); err != nil {
		stop()
		log.Fatalf("bootstrap: %v", err)
	}

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, campaignHandler, mediaHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
