package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/models"
	"deathfun-backend/internal/services"
)

type PlayerHandler struct {
	gameEngine *services.GameEngine
	ledger     *services.RedisLedger
	log        zerolog.Logger
}

func NewPlayerHandler(gameEngine *services.GameEngine, ledger *services.RedisLedger, logger zerolog.Logger) *PlayerHandler {
	return &PlayerHandler{
		gameEngine: gameEngine,
		ledger:     ledger,
		log:        logger.With().Str("component", "player_handler").Logger(),
	}
}

func (h *PlayerHandler) GetAccount(c *gin.Context) {
	ownerID, ok := ownerParam(c)
	if !ok {
		return
	}

	account, err := h.ledger.Account(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, h.log, "Failed to get account", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": account,
	})
}

func (h *PlayerHandler) Deposit(c *gin.Context) {
	ownerID, ok := ownerParam(c)
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	account, err := h.ledger.Deposit(c.Request.Context(), ownerID, req.Amount)
	if err != nil {
		respondError(c, h.log, "Failed to deposit", err)
		return
	}

	h.log.Info().Str("owner_id", ownerID).Float64("amount", req.Amount).Msg("deposit credited")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": account,
	})
}

func (h *PlayerHandler) RegisterReferrer(c *gin.Context) {
	ownerID, ok := ownerParam(c)
	if !ok {
		return
	}

	var req models.ReferrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}
	if err := req.Validate(ownerID); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	account, set, err := h.ledger.RegisterReferrer(c.Request.Context(), ownerID, req.Referrer)
	if err != nil {
		respondError(c, h.log, "Failed to register referrer", err)
		return
	}

	if set {
		h.log.Info().Str("owner_id", ownerID).Str("referrer", req.Referrer).Msg("referrer registered")
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": set,
		"account": account,
	})
}

func (h *PlayerHandler) GetReferrer(c *gin.Context) {
	ownerID, ok := ownerParam(c)
	if !ok {
		return
	}

	referrer, err := h.ledger.Referrer(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, h.log, "Failed to get referrer", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"referred": referrer != "",
		"referrer": referrer,
	})
}

func (h *PlayerHandler) LastSession(c *gin.Context) {
	session, err := h.gameEngine.LastSession(c.Request.Context(), c.Param("owner"))
	if err != nil {
		respondError(c, h.log, "Failed to get last session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": session,
	})
}

func (h *PlayerHandler) History(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	sessions, err := h.gameEngine.History(c.Request.Context(), c.Param("owner"), limit)
	if err != nil {
		respondError(c, h.log, "Failed to get history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *PlayerHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	entries, err := h.ledger.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, "Failed to get leaderboard", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": entries,
	})
}

func ownerParam(c *gin.Context) (string, bool) {
	ownerID := models.NormalizeOwnerID(c.Param("owner"))
	if err := models.ValidateOwnerID(ownerID); err != nil {
		badRequest(c, "Invalid owner", err)
		return "", false
	}
	return ownerID, true
}
