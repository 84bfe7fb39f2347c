package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// IdentityHook runs once per authenticated request, e.g. to store the user.
type IdentityHook func(ctx context.Context, id *Identity) error

// Middleware authenticates every request with a bearer token. Browsers cannot set
// headers on WebSocket upgrades, so a "token" query parameter is accepted too.
func Middleware(v *Verifier, hook IdentityHook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if token := c.QueryParam("token"); token != "" {
					header = "Bearer " + token
				}
			}
			id, err := v.ParseHeader(header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
			}
			if hook != nil {
				if err := hook(c.Request().Context(), id); err != nil {
					return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to resolve user"})
				}
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// RequireAdmin rejects callers without the admin role. It must run after Middleware.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := FromContext(c)
		if id == nil || !id.IsAdmin() {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "admin role required"})
		}
		return next(c)
	}
}

// FromContext returns the identity stored by Middleware, or nil.
func FromContext(c echo.Context) *Identity {
	id, _ := c.Get(identityKey).(*Identity)
	return id
}

// WithIdentity stores id on c. Handlers under test use it in place of Middleware.
func WithIdentity(c echo.Context, id *Identity) {
	c.Set(identityKey, id)
}
