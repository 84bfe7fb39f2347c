package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// UpsertProduct creates a product, or updates it when product_id is set.
// POST /internal/products
func (h *Handler) UpsertProduct(c echo.Context) error {
	var req domain.UpsertProductRequest
	if err := c.Bind(&req); err != nil {
		return respond.Message(c, http.StatusBadRequest, "invalid request body")
	}

	product, err := h.service.UpsertProduct(c.Request().Context(), req)
	if err != nil {
		return respond.Error(c, err)
	}

	status := http.StatusOK
	if req.ProductID == 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, product)
}

// ListProducts lists the catalog.
// GET /internal/products
func (h *Handler) ListProducts(c echo.Context) error {
	products, err := h.service.ListProducts(c.Request().Context())
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
	})
}
