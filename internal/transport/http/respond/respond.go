// Package respond writes API errors in the shape shared by both HTTP servers.
package respond

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/treeleaf/internal/apperrors"
)

// CauseKey holds the full error of an internal failure for the request logger.
// Clients only see the error's message.
const CauseKey = "error_cause"

// Error writes err as {"error", "code", ...metadata} with the status of its code.
func Error(c echo.Context, err error) error {
	code := apperrors.GetCode(err)
	body := map[string]string{
		"error": publicMessage(code, err),
		"code":  string(code),
	}
	for k, v := range apperrors.GetMetadata(err) {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}
	if internal(code) {
		c.Set(CauseKey, err)
	}
	if code.Retryable() {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(code.HTTPStatus(), body)
}

// Message writes a plain {"error": msg} body.
func Message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func internal(code apperrors.Code) bool {
	return code == apperrors.CodeStorage || code == apperrors.CodeUnknown
}

func publicMessage(code apperrors.Code, err error) string {
	if !internal(code) {
		return err.Error()
	}
	var e *apperrors.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
