package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// CreateSession purchases a game package.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}
	ctx := c.Request().Context()

	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return respond.Message(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ProductID <= 0 {
		return respond.Message(c, http.StatusBadRequest, "product_id is required")
	}
	if req.PackageType == "" {
		return respond.Message(c, http.StatusBadRequest, "package_type is required")
	}

	resp, err := h.service.CreateSession(ctx, id.UserID, req.ProductID, req.PackageType)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetActiveSession returns the caller's active session for a product.
// GET /v1/products/:product_id/session
func (h *Handler) GetActiveSession(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}
	productID, ok := parseID(c.Param("product_id"))
	if !ok {
		return respond.Message(c, http.StatusBadRequest, "invalid product_id")
	}

	view, err := h.service.GetActiveSession(c.Request().Context(), id.UserID, productID)
	if err != nil {
		return respond.Error(c, err)
	}
	if view == nil {
		return respond.Message(c, http.StatusNotFound, "no active session")
	}
	return c.JSON(http.StatusOK, view)
}

// GetGameHistory lists the caller's sessions, newest first.
// GET /v1/me/sessions
func (h *Handler) GetGameHistory(c echo.Context) error {
	id := auth.FromContext(c)
	if id == nil {
		return unauthenticated(c)
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return respond.Message(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	items, err := h.service.GetUserGameHistory(c.Request().Context(), id.UserID, limit)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": items,
	})
}
