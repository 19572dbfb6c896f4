package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/token"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ContextUserKey is where RequireAuth stores the resolved account.
const ContextUserKey = "current_user"

type sessionDecoder interface {
	Decode(tokenString string) (*token.Claims, error)
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}

type AuthMiddleware struct {
	codec sessionDecoder
	users userFinder
}

func NewAuthMiddleware(codec sessionDecoder, users userFinder) *AuthMiddleware {
	return &AuthMiddleware{codec: codec, users: users}
}

// RequireAuth resolves the caller's account from the bearer token. A missing
// header, an invalid token and an unknown subject all answer 401 so the
// response never reveals which check failed.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}

		claims, err := m.codec.Decode(parts[1])
		if err != nil {
			logrus.Debug("Invalid or expired session token")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}

		user, err := m.users.FindByEmail(c.Request().Context(), claims.Subject)
		if err != nil {
			logrus.WithError(err).Error("failed to resolve token subject")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "internal server error",
			})
		}
		if user == nil {
			logrus.WithField("subject", claims.Subject).Debug("Token subject is not registered")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}

		c.Set(ContextUserKey, user)
		return next(c)
	}
}

// RequireActive rejects callers whose account has been deactivated. It must
// run after RequireAuth.
func (m *AuthMiddleware) RequireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}
		if !user.IsActive {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "user is inactive",
			})
		}
		return next(c)
	}
}

// RequireAdmin rejects callers without the admin tier. It must run after
// RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}
		if !user.IsAdmin {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "authorization failed",
			})
		}
		return next(c)
	}
}

// CurrentUser returns the account RequireAuth resolved, or nil.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(ContextUserKey).(*entity.User)
	return user
}
