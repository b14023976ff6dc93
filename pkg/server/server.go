package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/pkg/config"
	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/middleware"
	"github.com/rax0nrax/punyfunny/pkg/monitoring"
)

// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
const ShutdownTimeout = 30 * time.Second

// Config represents server configuration
type Config struct {
	Port         string
	ServiceName  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig(serviceName, defaultPort string) Config {
	return Config{
		Port:         config.GetEnv("PORT", defaultPort),
		ServiceName:  serviceName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// SetupServiceRouter creates a gin engine with the common middleware chain
// plus /health and /metrics backed by the given checker and collector.
func SetupServiceRouter(logger logging.Logger, serviceName string, hc *monitoring.HealthChecker, mc *monitoring.MetricsCollector) *gin.Engine {
	if config.GetEnv("GIN_MODE", "debug") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	middleware.SetupCommonMiddleware(router, logger)
	if mc != nil {
		router.Use(mc.MetricsMiddleware())
	}

	if hc == nil {
		hc = monitoring.NewHealthChecker(serviceName, "unknown")
	}
	router.GET("/health", hc.Handler())
	if mc != nil {
		router.GET("/metrics", mc.Handler())
	}

	return router
}

// Start serves handler until SIGINT or SIGTERM, then drains in-flight
// requests. The handler is usually a gin engine, possibly wrapped.
func Start(cfg Config, handler http.Handler, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg, handler, logger)
}

// Run is Start with the shutdown trigger supplied by the caller.
func Run(ctx context.Context, cfg Config, handler http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logging.Fields{
			"port":    cfg.Port,
			"service": cfg.ServiceName,
		}).Info("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.WithField("service", cfg.ServiceName).Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.WithField("service", cfg.ServiceName).Info("Server stopped")
	return nil
}
