// Package v1 provides the player-facing HTTP handlers.
package v1

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/hub"
	"github.com/xiaot623/treeleaf/internal/service"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// Handler handles player HTTP requests.
type Handler struct {
	service  *service.Service
	feed     *hub.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, feed *hub.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		service: service,
		feed:    feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// RegisterRoutes registers player routes. authn guards everything under /v1,
// playLimit additionally guards round submission.
func (h *Handler) RegisterRoutes(e *echo.Echo, authn, playLimit echo.MiddlewareFunc) {
	g := e.Group("/v1", authn)

	// Sessions
	g.POST("/sessions", h.CreateSession)
	g.GET("/products/:product_id/session", h.GetActiveSession)
	g.GET("/me/sessions", h.GetGameHistory)

	// Rounds
	g.POST("/sessions/:session_id/rounds", h.PlayRound, playLimit)
	g.GET("/sessions/:session_id/rounds", h.GetSessionRounds)

	// Live feed
	g.GET("/sessions/:session_id/feed", h.Feed)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if err := h.service.Ready(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func unauthenticated(c echo.Context) error {
	return respond.Message(c, http.StatusUnauthorized, "authentication required")
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
