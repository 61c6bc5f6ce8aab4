package middleware

import (
	"net/http"
	"strings"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

const (
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeyClaims is the context key for the parsed token claims
	ContextKeyClaims = "claims"
)

// RequireAuth validates the bearer token and loads the account into context.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cfg, _ := c.Get("config").(*config.Config)
			if cfg == nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "configuration missing")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token inválido")
			}

			claims, err := services.ParseAccessToken(cfg, token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token inválido")
			}

			user, err := services.ResolveUser(db.DB, claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token inválido")
			}

			c.Set(ContextKeyUser, user)
			c.Set(ContextKeyClaims, claims)
			return next(c)
		}
	}
}

// RequireRoles requires one of the given roles. An entidad account flagged as
// auditor satisfies a requirement for "auditor".
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
				if role == models.RoleAuditor && user.HasAuditorAccess() {
					return next(c)
				}
			}

			return echo.NewHTTPError(http.StatusForbidden, "Sin permisos")
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// IsPlainEntidad reports whether the caller is an entidad account without
// auditor access; these users only see their own entity's plans.
func IsPlainEntidad(user *models.User) bool {
	return user != nil && user.Role == models.RoleEntidad && !user.EntidadAuditor
}
