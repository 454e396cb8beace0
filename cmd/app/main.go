package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nyota-loan-api/internal/config"
	"nyota-loan-api/internal/domain/ports/repository"
	"nyota-loan-api/internal/infra/adapters/mpesa"
	"nyota-loan-api/internal/infra/logging"
	"nyota-loan-api/internal/infra/memory"
	"nyota-loan-api/internal/infra/metrics"
	red "nyota-loan-api/internal/infra/redis"
	"nyota-loan-api/internal/infra/web"
	"nyota-loan-api/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Redis (optional: registry backend and/or rate limiter) ----
	var redisClient red.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
	}

	// ---- Registry ----
	var apps repository.ApplicationRepository
	switch cfg.Registry.Backend {
	case "redis":
		apps = red.NewApplicationRepo(redisClient)
		logger.Info().Msg("registry backend: redis")
	default:
		apps = memory.NewApplicationRepo()
		logger.Info().Msg("registry backend: memory (correlations are lost on restart)")
	}

	// ---- Gateway ----
	gateway, err := mpesa.NewDarajaGateway(cfg.Mpesa)
	if err != nil {
		logger.Fatal().Err(err).Msg("daraja gateway")
	}

	// ---- Use cases ----
	appUC := usecase.NewApplicationUseCase(apps, logger)
	payUC := usecase.NewPaymentUseCase(apps, gateway, logger)

	// ---- Rate limiter ----
	var limiter *red.RateLimiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- HTTP server ----
	srv := web.NewServer(appUC, payUC, limiter, cfg.RateLimit, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("nyota loan api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
