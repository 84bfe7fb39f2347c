package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
)

func withPlayer(userID int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth.WithIdentity(c, &auth.Identity{UserID: userID, Role: domain.RoleUser})
			return next(c)
		}
	}
}

func ok(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestPlayRateLimiter(t *testing.T) {
	e := echo.New()
	limiter := PlayRateLimiter(1)
	e.POST("/alice", ok, withPlayer(7), limiter)
	e.POST("/bob", ok, withPlayer(8), limiter)

	codes := make([]int, 0, 3)
	for _, path := range []string{"/alice", "/alice", "/bob"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusOK {
		t.Fatalf("unexpected status codes: %v", codes)
	}
}

func TestPlayRateLimiterDisabled(t *testing.T) {
	e := echo.New()
	e.POST("/play", ok, withPlayer(7), PlayRateLimiter(0))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/play", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	e := echo.New()
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(RequestLogger(zap.NewNop()))

	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = logger.RequestID(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if seen != "req-42" {
		t.Fatalf("expected request id in context, got %q", seen)
	}
	if rec.Header().Get(echo.HeaderXRequestID) != "req-42" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get(echo.HeaderXRequestID))
	}
}

func TestRequestLoggerRecordsInternalCause(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/", func(c echo.Context) error {
		return respond.Error(c, apperrors.Storage("failed to get session", errors.New("database is locked")))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Fatalf("cause leaked to the client: %s", rec.Body.String())
	}
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; !strings.Contains(fmt.Sprint(got), "database is locked") {
		t.Fatalf("expected the cause in the log, got %v", got)
	}
}
