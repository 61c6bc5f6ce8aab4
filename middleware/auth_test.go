package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMiddlewareTest(t *testing.T) (*gorm.DB, *config.Config) {
	t.Helper()
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&models.User{}))
	db.DB = testDB

	cfg := &config.Config{
		Environment:    "test",
		JWTSecret:      "test-secret-for-middleware-tests-0123456789",
		JWTExpireHours: 1,
	}
	return testDB, cfg
}

func contextWithAuth(cfg *config.Config, token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("config", cfg)
	return c, rec
}

func TestRequireAuthLoadsUser(t *testing.T) {
	testDB, cfg := setupMiddlewareTest(t)

	user := &models.User{Email: "entidad@acme.gov.co", HashedPassword: "x", Role: models.RoleEntidad, Entidad: "ACME"}
	require.NoError(t, testDB.Create(user).Error)

	token, err := services.CreateAccessToken(cfg, user)
	require.NoError(t, err)

	c, _ := contextWithAuth(cfg, token)
	handler := RequireAuth()(func(c echo.Context) error {
		loaded := GetCurrentUser(c)
		require.NotNil(t, loaded)
		assert.Equal(t, user.ID, loaded.ID)
		return c.NoContent(http.StatusOK)
	})
	assert.NoError(t, handler(c))
}

func TestRequireAuthRejectsMissingOrBadToken(t *testing.T) {
	_, cfg := setupMiddlewareTest(t)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c, _ := contextWithAuth(cfg, "")
	err := RequireAuth()(next)(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	c, _ = contextWithAuth(cfg, "not-a-jwt")
	err = RequireAuth()(next)(c)
	httpErr, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRequireRolesAllowsAuditorFlaggedEntidad(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/seguimiento/1/observacion", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	c.Set(ContextKeyUser, &models.User{Role: models.RoleEntidad, Entidad: "ACME", EntidadAuditor: true})

	called := false
	next := func(c echo.Context) error { called = true; return nil }
	require.NoError(t, RequireRoles(models.RoleAdmin, models.RoleAuditor)(next)(c))
	assert.True(t, called)
}

func TestRequireRolesForbidsPlainEntidad(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/seguimiento/1/observacion", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	c.Set(ContextKeyUser, &models.User{Role: models.RoleEntidad, Entidad: "ACME"})

	next := func(c echo.Context) error { return nil }
	err := RequireRoles(models.RoleAdmin, models.RoleAuditor)(next)(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestRequireRolesForbidsCiudadanoFromPlanWorkflow(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	// ciudadano accounts are read-only: no plan capture, no verdicts.
	gates := []echo.MiddlewareFunc{
		RequireRoles(models.RoleAdmin, models.RoleEntidad),
		RequireRoles(models.RoleAdmin, models.RoleAuditor),
	}
	for _, gate := range gates {
		req := httptest.NewRequest(http.MethodPost, "/seguimiento/1/estado", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set(ContextKeyUser, &models.User{Role: models.RoleCiudadano})

		err := gate(next)(c)
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/seguimiento/1/estado", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set(ContextKeyUser, &models.User{Role: models.RoleAuditor})
	require.NoError(t, RequireRoles(models.RoleAdmin, models.RoleAuditor)(next)(c))
}

func TestIsPlainEntidad(t *testing.T) {
	assert.True(t, IsPlainEntidad(&models.User{Role: models.RoleEntidad}))
	assert.False(t, IsPlainEntidad(&models.User{Role: models.RoleEntidad, EntidadAuditor: true}))
	assert.False(t, IsPlainEntidad(&models.User{Role: models.RoleAdmin}))
	assert.False(t, IsPlainEntidad(nil))
}
