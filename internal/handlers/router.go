package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/metrics"
	"deathfun-backend/internal/middleware"
	"deathfun-backend/internal/services"
)

type RouterConfig struct {
	GameEngine   *services.GameEngine
	Verifier     *services.Verifier
	Receipts     *services.ReceiptService
	Ledger       *services.RedisLedger
	RedisService *services.RedisService
	Hub          *WebSocketHub
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger

	// Requests per minute per client IP. Zero disables the limit. The click limit
	// also covers cash out and stateless verification.
	RateLimitCreate int
	RateLimitClicks int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.CORSMiddleware())

	sessionHandler := NewSessionHandler(cfg.GameEngine, cfg.Verifier, cfg.Receipts, cfg.Logger)
	playerHandler := NewPlayerHandler(cfg.GameEngine, cfg.Ledger, cfg.Logger)
	wsHandler := NewWebSocketHandler(cfg.GameEngine, cfg.Hub, cfg.Logger)

	createLimit := middleware.RateLimitMiddleware(cfg.RedisService, "create", cfg.RateLimitCreate, time.Minute, cfg.Logger)
	clickLimit := middleware.RateLimitMiddleware(cfg.RedisService, "click", cfg.RateLimitClicks, time.Minute, cfg.Logger)
	verifyLimit := middleware.RateLimitMiddleware(cfg.RedisService, "verify", cfg.RateLimitClicks, time.Minute, cfg.Logger)

	router.GET("/health", HealthCheck(cfg.RedisService))
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	api := router.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", createLimit, sessionHandler.CreateSession)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.DELETE("/:id", sessionHandler.Teardown)
			sessions.POST("/:id/clicks", clickLimit, sessionHandler.RecordClick)
			sessions.POST("/:id/cashout", clickLimit, sessionHandler.Cashout)
			sessions.GET("/:id/reveal", sessionHandler.Reveal)
			sessions.GET("/:id/validity", sessionHandler.Validity)
			sessions.GET("/:id/verify", sessionHandler.Verify)
			sessions.GET("/:id/ws", wsHandler.HandleWebSocket)
		}

		api.POST("/verify", verifyLimit, sessionHandler.VerifyRevealed)

		players := api.Group("/players/:owner")
		{
			players.GET("", playerHandler.GetAccount)
			players.POST("/deposit", playerHandler.Deposit)
			players.GET("/referrer", playerHandler.GetReferrer)
			players.POST("/referrer", playerHandler.RegisterReferrer)
			players.GET("/last-session", playerHandler.LastSession)
			players.GET("/sessions", playerHandler.History)
		}

		api.GET("/leaderboard", playerHandler.Leaderboard)
	}

	return router
}
