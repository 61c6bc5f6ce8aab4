package handlers

import (
	"net/http"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// TokenHandler issues a bearer token for valid credentials.
// The request body is form-encoded (username/password) like an OAuth2
// password grant, which is what the web client sends.
func TokenHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)
	if cfg == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "configuration missing")
	}

	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := services.Authenticate(db.DB, username, password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Credenciales inválidas")
	}

	token, err := services.CreateAccessToken(cfg, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// MeHandler returns the authenticated account's profile.
func MeHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":              user.ID,
		"email":           user.Email,
		"role":            user.Role,
		"entidad":         user.Entidad,
		"entidad_perm":    user.EntidadPerm,
		"entidad_auditor": user.EntidadAuditor,
	})
}
