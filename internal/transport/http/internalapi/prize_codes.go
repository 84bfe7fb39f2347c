package internalapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

// ListPrizeCodes lists issued prize codes with their owners and products.
// GET /internal/prize_codes
func (h *Handler) ListPrizeCodes(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return respond.Message(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	codes, err := h.service.ListPrizeCodes(c.Request().Context(), limit)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"prize_codes": codes,
	})
}

// InspectPrizeCode looks up a prize code without changing it.
// GET /internal/prize_codes/:code
func (h *Handler) InspectPrizeCode(c echo.Context) error {
	details, err := h.service.InspectPrizeCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

// RedeemPrizeCode consumes a prize code.
// POST /internal/prize_codes/:code/redeem
func (h *Handler) RedeemPrizeCode(c echo.Context) error {
	resp, err := h.service.RedeemPrizeCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
