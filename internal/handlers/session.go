package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/models"
	"deathfun-backend/internal/services"
)

type SessionHandler struct {
	gameEngine *services.GameEngine
	verifier   *services.Verifier
	receipts   *services.ReceiptService
	log        zerolog.Logger
}

func NewSessionHandler(gameEngine *services.GameEngine, verifier *services.Verifier, receipts *services.ReceiptService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		gameEngine: gameEngine,
		verifier:   verifier,
		receipts:   receipts,
		log:        logger.With().Str("component", "session_handler").Logger(),
	}
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	created, err := h.gameEngine.CreateSession(c.Request.Context(), req.OwnerID, req.Stake)
	if err != nil {
		respondError(c, h.log, "Failed to create session", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": created,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	state, err := h.gameEngine.GetPublicState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": state,
	})
}

func (h *SessionHandler) RecordClick(c *gin.Context) {
	var req models.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	result, err := h.gameEngine.RecordClick(c.Request.Context(), c.Param("id"), *req.RowIndex, *req.TileIndex)
	if err != nil {
		respondError(c, h.log, "Failed to record click", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *SessionHandler) Cashout(c *gin.Context) {
	result, err := h.gameEngine.EndVoluntarily(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to cash out", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// Reveal answers 403 with the commitment while the round is still running.
func (h *SessionHandler) Reveal(c *gin.Context) {
	result, err := h.gameEngine.Reveal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to reveal seed", err)
		return
	}

	if !result.Revealed {
		c.JSON(http.StatusForbidden, gin.H{
			"success":    false,
			"error":      "Seed is revealed once the round has ended",
			"status":     result.Status,
			"commitment": result.Commitment,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reveal":  result,
	})
}

func (h *SessionHandler) Validity(c *gin.Context) {
	result, err := h.gameEngine.Validity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to check session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"validity": result,
	})
}

func (h *SessionHandler) Verify(c *gin.Context) {
	report, err := h.verifier.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to verify session", err)
		return
	}

	receipt, err := h.receipts.Sign(report.SessionID, report.Commitment, report)
	if err != nil {
		respondError(c, h.log, "Failed to sign receipt", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
		"receipt": receipt,
	})
}

// VerifyRevealed checks revealed data posted by a third party; nothing is read from the store.
func (h *SessionHandler) VerifyRevealed(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  h.verifier.VerifyRequest(&req),
	})
}

func (h *SessionHandler) Teardown(c *gin.Context) {
	if err := h.gameEngine.Teardown(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, "Failed to delete session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session deleted",
	})
}
