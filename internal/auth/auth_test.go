package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/treeleaf/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(7, "alice", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	id, err := v.ParseHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
	assert.Equal(t, "alice", id.Name)
	assert.True(t, id.IsAdmin())
}

func TestParseRejects(t *testing.T) {
	v := NewVerifier("secret")

	_, err := v.ParseHeader("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.ParseHeader("Token abc")
	assert.ErrorIs(t, err, ErrInvalidTokenFormat)

	other, err := NewVerifier("other").Issue(7, "", domain.RoleUser, time.Hour)
	require.NoError(t, err)
	_, err = v.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Parse(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Parse(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnknownRoleIsUser(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(3, "", domain.Role("root"), 0)
	require.NoError(t, err)
	id, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, id.Role)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	e := echo.New()

	var hooked *Identity
	handler := Middleware(v, func(_ context.Context, id *Identity) error {
		hooked = id
		return nil
	})(RequireAdmin(func(c echo.Context) error {
		return c.String(http.StatusOK, FromContext(c).Name)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken, _ := v.Issue(7, "bob", domain.RoleUser, time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+userToken)
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, hooked)
	assert.Equal(t, int64(7), hooked.UserID)

	adminToken, _ := v.Issue(1, "root", domain.RoleAdmin, time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/?token="+adminToken, nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", rec.Body.String())
}
