package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericfitz/oauthreg/api"
	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/ericfitz/oauthreg/internal/telemetry"
	"github.com/gin-gonic/gin"
)

func main() {
	configFile, generateConfig, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	if generateConfig {
		if err := config.GenerateExampleConfig(os.Stdout); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            cfg.GetLogLevel(),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := slogging.Get()

	if err := run(cfg); err != nil {
		logger.Error("Server exited with error: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
	if err := logger.Close(); err != nil {
		log.Printf("Error closing logger: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := slogging.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	telemetryService, err := telemetry.NewService(ctx, telemetry.NewConfig(cfg.Telemetry, cfg.Logging.IsDev))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryService.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed: %v", err)
		}
	}()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("Error closing stores: %v", err)
		}
	}()

	server, err := newAPIServer(cfg, comps, telemetryService)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s (base url %s)", httpServer.Addr, cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newAPIServer wraps the resolver in telemetry and builds the HTTP routes
func newAPIServer(cfg *config.Config, comps *components, telemetryService *telemetry.Service) (*api.Server, error) {
	repo, err := telemetry.NewTracedRepository(comps.resolver, telemetryService.TracerProvider(), telemetryService.MeterProvider())
	if err != nil {
		return nil, err
	}

	signer, err := api.NewStateSigner([]byte(cfg.Auth.StateSecret), cfg.Auth.StateTTL)
	if err != nil {
		return nil, err
	}

	return api.NewServer(api.ServerOptions{
		Repository:     repo,
		Providers:      comps.store,
		State:          signer,
		RedirectURL:    cfg.RedirectURL,
		HealthChecks:   comps.healthChecks,
		Metrics:        telemetryService.MetricsHandler(),
		TracerProvider: telemetryService.TracerProvider(),
		ServiceName:    cfg.Telemetry.ServiceName,
	})
}
