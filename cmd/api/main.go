package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"deathfun-backend/internal/config"
	"deathfun-backend/internal/handlers"
	"deathfun-backend/internal/logger"
	"deathfun-backend/internal/metrics"
	"deathfun-backend/internal/services"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLog := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if envErr != nil {
		appLog.Info().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	redisService, err := services.NewRedisService(connectCtx, cfg)
	cancel()
	if err != nil {
		appLog.Fatal().Err(err).Str("addr", cfg.RedisURL).Msg("failed to connect to redis")
	}
	defer redisService.Close()

	m := metrics.NewMetrics()
	ledger := services.NewRedisLedger(redisService)

	gameEngine := services.NewGameEngine(redisService, redisService, services.EngineOptions{
		TTL:        cfg.SessionTTL,
		MaxRetries: cfg.CASMaxRetries,
		Ledger:     ledger,
		Metrics:    m,
		Logger:     appLog.With().Str("component", "engine").Logger(),
	})

	hub := handlers.NewWebSocketHub(appLog)
	defer hub.Stop()
	gameEngine.SetBroadcaster(hub)

	verifier := services.NewVerifier(redisService, m, appLog.With().Str("component", "verifier").Logger())

	secret := []byte(cfg.ReceiptSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			appLog.Fatal().Err(err).Msg("failed to generate receipt secret")
		}
		appLog.Warn().Msg("RECEIPT_SECRET not set, receipts will not survive a restart")
	}
	receipts := services.NewReceiptService(secret, 0)

	janitor, err := services.NewHistoryJanitor(redisService, cfg.JanitorSchedule, appLog.With().Str("component", "janitor").Logger())
	if err != nil {
		appLog.Fatal().Err(err).Msg("failed to schedule history janitor")
	}
	janitor.Start()
	defer janitor.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		GameEngine:      gameEngine,
		Verifier:        verifier,
		Receipts:        receipts,
		Ledger:          ledger,
		RedisService:    redisService,
		Hub:             hub,
		Metrics:         m,
		Logger:          appLog,
		RateLimitCreate: cfg.RateLimitCreate,
		RateLimitClicks: cfg.RateLimitClicks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
