package v1

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// Feed upgrades to a websocket that streams the session's live events.
// GET /v1/sessions/:session_id/feed
func (h *Handler) Feed(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}
	sessionID := c.Param("session_id")

	// Only the owner may subscribe.
	if _, err := h.service.GetSession(c.Request().Context(), sessionID, id.UserID); err != nil {
		return respond.Error(c, err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	conn := h.feed.NewConnection(ws, sessionID, id.UserID)
	h.feed.Serve(conn)
	return nil
}
