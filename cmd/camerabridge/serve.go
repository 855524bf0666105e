package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/internal/core/services"
	httphandlers "onebarn/internal/handlers/http"
	"onebarn/internal/infrastructure/monitoring"
	"onebarn/pkg/logger"
	"onebarn/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the camera bridge API and event stream to the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger := newLogger(cfg)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("tracing disabled", "error", err)
		tp = &tracing.TracerProvider{}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	st := newStack(ctx, cfg, collector, log)
	tenants := services.NewTenantRegistry(func(ctx context.Context, tenantID domain.TenantID) (ports.CameraBridge, error) {
		// Bridges outlive the request that first asked for them.
		return st.buildBridge(context.WithoutCancel(ctx), tenantID)
	}, cfg.Server.MaxTenants, log)

	health := monitoring.NewHealthChecker()
	if client := st.repos.RedisClient(); client != nil {
		health.AddRedisCheck(client, 2*time.Second)
	}
	health.AddCircuitBreakerCheck("camera_api", st.api.BreakerState)
	health.AddBridgeCheck(tenants)

	eventsHandler := httphandlers.NewEventsHandler(tenants, cfg.Auth.AllowedOrigins, cfg.Server.PingInterval, log)
	if st.mirror != nil {
		go func() {
			if err := st.mirror.Subscribe(ctx, eventsHandler.DeliverRemote); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event mirror subscription ended", "error", err)
			}
		}()
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := httphandlers.RouterDeps{
		Config:        cfg,
		Auth:          services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		Bridges:       tenants,
		Events:        eventsHandler,
		Health:        health,
		ContextLogger: logger.NewContextLogger(zapLogger),
		Recorder:      collector,
		Logger:        log,
	}
	if cfg.Monitoring.PrometheusEnabled {
		deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      httphandlers.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting camera bridge server",
			"address", cfg.Server.Address,
			"bridge", cfg.BridgeBaseURL(),
			"instance_id", st.instanceID,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err = <-serverErr:
		log.Errorw("server failed", "error", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	eventsHandler.Close()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Errorw("error during server shutdown", "error", shutdownErr)
		_ = srv.Close()
	}
	tenants.DestroyAll()
	st.close()
	if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnw("error flushing traces", "error", shutdownErr)
	}

	log.Info("camera bridge server stopped")
	return err
}
