package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/markdown-sidecar/backend/internal/api"
	"github.com/markdown-sidecar/backend/internal/config"
	"github.com/markdown-sidecar/backend/internal/convert"
	"github.com/markdown-sidecar/backend/internal/logger"
	"github.com/markdown-sidecar/backend/internal/metrics"
	"github.com/markdown-sidecar/backend/internal/scheduler"
	"github.com/markdown-sidecar/backend/internal/upload"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Converter set: built-in defaults, optionally overridden from YAML.
	descriptors, err := convert.LoadDescriptors(cfg.ConvertersConfig,
		convert.DefaultDescriptors(cfg.PandocMaxHeap, cfg.PandocInitialHeap))
	if err != nil {
		log.Fatal("failed to load converter configuration", zap.Error(err))
	}

	sched := scheduler.New(cfg.MaxConcurrent, cfg.MaxQueued)
	streamer := upload.NewStreamer(cfg.MaxUploadSize, cfg.TempDir)
	router := convert.NewRouter(descriptors)
	runner := convert.NewExecRunner(cfg.ConversionTimeout, log)

	handlers := api.NewHandlers(&api.Dependencies{
		Config:    cfg,
		Logger:    log,
		Scheduler: sched,
		Streamer:  streamer,
		Router:    router,
		Runner:    runner,
	})

	stopMetrics := make(chan struct{})
	defer close(stopMetrics)
	metrics.StartUpdater(sched, 10*time.Second, stopMetrics)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	api.RegisterRoutes(e, handlers)

	// WriteTimeout must cover a full fallback chain, not a single
	// attempt, plus the queue wait.
	maxChain := 3
	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: time.Duration(maxChain)*cfg.ConversionTimeout + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("starting conversion sidecar",
		zap.String("version", Version),
		zap.String("buildTime", BuildTime),
		zap.String("addr", s.Addr),
		zap.Int("maxConcurrent", cfg.MaxConcurrent),
		zap.Int("maxQueued", cfg.MaxQueued),
		zap.Int64("maxUploadSize", cfg.MaxUploadSize),
		zap.Duration("conversionTimeout", cfg.ConversionTimeout),
		zap.String("converters", strings.Join(converterNames(descriptors), ",")),
	)

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func converterNames(descriptors map[string]convert.Descriptor) []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	return names
}
