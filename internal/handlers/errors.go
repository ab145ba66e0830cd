package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/services"
)

// respondError maps a service error onto a status code and the usual error body.
func respondError(c *gin.Context, log zerolog.Logger, message string, err error) {
	var terr *services.TransitionError
	if errors.As(err, &terr) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   message,
			"details": err.Error(),
			"reason":  terr.Reason,
			"state": gin.H{
				"expected_row": terr.ExpectedRow,
				"ended":        terr.Ended,
			},
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	}

	body := gin.H{
		"success": false,
		"error":   message,
	}
	if status < http.StatusInternalServerError {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"details": err.Error(),
	})
}
