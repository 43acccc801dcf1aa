package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-page/internal/client"
	"github.com/kjstillabower/weather-page/internal/config"
	httphandler "github.com/kjstillabower/weather-page/internal/http"
	"github.com/kjstillabower/weather-page/internal/lifecycle"
	"github.com/kjstillabower/weather-page/internal/observability"
	"github.com/kjstillabower/weather-page/internal/render"
	"github.com/kjstillabower/weather-page/internal/service"
	"github.com/kjstillabower/weather-page/internal/traffic"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("no OpenWeatherMap API key configured; lookups will fail upstream",
			zap.String("env", "OPENWEATHER_API_KEY"))
	}

	tp, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: cfg.TracingServiceName,
	})
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}
	if tp != nil {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.TracingEndpoint))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	page := service.NewWeatherPage(weatherClient, service.PageConfig{
		DefaultCity:    cfg.DefaultCity,
		QuickLocations: cfg.QuickLocations,
		IconBaseURL:    cfg.IconBaseURL,
		MaxQueryLength: cfg.MaxQueryLength,
	})

	renderer, err := render.New()
	if err != nil {
		logger.Fatal("templates", zap.Error(err))
	}

	observability.SetTrackedLocations(cfg.TrackedLocations)

	window := traffic.NewWindow(cfg.DegradedWindow)
	handler := httphandler.NewHandler(page, renderer, window, &httphandler.HealthConfig{
		DegradedErrorPct: cfg.DegradedErrorPct,
		Version:          version,
	}, logger, nil)

	limiter := newLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, logger, limiter, inFlight)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("default_city", cfg.DefaultCity),
			zap.Strings("quick_locations", cfg.QuickLocations))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := observability.FlushTelemetry(flushCtx, logger, tp); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Duration("uptime", lifecycle.Uptime()))
}

// newLimiter returns the inbound token bucket, or nil when rps is zero.
func newLimiter(rps, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
