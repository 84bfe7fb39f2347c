package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// PlayRound plays the next round of a session.
// POST /v1/sessions/:session_id/rounds
func (h *Handler) PlayRound(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}

	var req domain.PlayRoundRequest
	if err := c.Bind(&req); err != nil {
		return respond.Message(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Choice == "" {
		return respond.Message(c, http.StatusBadRequest, "choice is required")
	}

	result, err := h.service.PlayRound(c.Request().Context(), c.Param("session_id"), id.UserID, req.Choice)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetSessionRounds returns the round history of a session.
// GET /v1/sessions/:session_id/rounds
func (h *Handler) GetSessionRounds(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}
	sessionID := c.Param("session_id")

	rounds, err := h.service.GetSessionRounds(c.Request().Context(), sessionID, id.UserID)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"rounds":     rounds,
	})
}
