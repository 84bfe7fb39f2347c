// Package http provides the HTTP servers of the game service.
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/config"
	"github.com/xiaot623/treeleaf/internal/hub"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/service"
	"github.com/xiaot623/treeleaf/internal/transport/http/internalapi"
	"github.com/xiaot623/treeleaf/internal/transport/http/respond"
	v1 "github.com/xiaot623/treeleaf/internal/transport/http/v1"
)

// NewExternalServer creates the player-facing HTTP server.
// It serves session purchase, rounds, history and the live feed.
func NewExternalServer(svc *service.Service, verifier *auth.Verifier, feed *hub.Hub, cfg *config.Config, log *zap.Logger) *echo.Echo {
	e := newEcho(log)
	e.Use(middleware.CORS())

	v1Handler := v1.NewHandler(svc, feed, log)
	v1Handler.RegisterRoutes(e, auth.Middleware(verifier, ensureUser(svc)), PlayRateLimiter(cfg.PlayRateLimit))

	return e
}

// NewInternalServer creates the operator-facing HTTP server.
// It serves the catalog, prize code administration and metrics.
func NewInternalServer(svc *service.Service, verifier *auth.Verifier, log *zap.Logger) *echo.Echo {
	e := newEcho(log)

	internalHandler := internalapi.NewHandler(svc)
	internalHandler.RegisterRoutes(e, auth.Middleware(verifier, ensureUser(svc)))

	return e
}

func newEcho(log *zap.Logger) *echo.Echo {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(RequestLogger(log))
	e.Use(middleware.Recover())

	return e
}

func ensureUser(svc *service.Service) auth.IdentityHook {
	return func(ctx context.Context, id *auth.Identity) error {
		_, err := svc.EnsureIdentity(ctx, id.UserID, id.Name, id.Role)
		return err
	}
}

// requestContext copies the request id into the request context for service logs.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if cause, ok := c.Get(respond.CauseKey).(error); ok {
				log.Error("request failed", append(fields, zap.Error(cause))...)
				return nil
			}
			if v.Error != nil {
				log.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

// PlayRateLimiter throttles round submissions per user. A non-positive limit disables it.
func PlayRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id := auth.FromContext(c); id != nil {
				return "user:" + strconv.FormatInt(id.UserID, 10), nil
			}
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return respond.Message(c, http.StatusForbidden, "rate limiter identifier unavailable")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return respond.Message(c, http.StatusTooManyRequests, "too many rounds, slow down")
		},
	})
}
