package handlers

import (
	"io"
	"net/http/httptest"
	"testing"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for async tasks
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	assert.NoError(t, err)

	err = testDB.Exec("PRAGMA journal_mode=WAL;").Error
	assert.NoError(t, err)

	if services.Storage == nil {
		services.Storage = services.NewLocalStorage("tmp/test_uploads")
	}

	err = testDB.AutoMigrate(
		&models.User{},
		&models.PlanAccion{},
		&models.Seguimiento{},
		&models.Reporte{},
	)
	assert.NoError(t, err)

	// Set global DB
	db.DB = testDB

	return testDB
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "test",
		JWTSecret:      "test-secret-for-handler-tests-0123456789",
		JWTExpireHours: 1,
		EmailTestMode:  true,
		MaxUploadMB:    5,
		EvidenceSubdir: "evidence",
		UploadDir:      "tmp/test_uploads",
	}
}

func setupEcho(method, path string, body io.Reader) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// Add config to context
	c.Set("config", testConfig())

	return e, c, rec
}

// actAs injects an authenticated user into the context the way
// RequireAuth would.
func actAs(t *testing.T, c echo.Context, testDB *gorm.DB, email, role, entidad string, auditor bool) *models.User {
	hashed, err := services.HashPassword("password123")
	assert.NoError(t, err)

	user := &models.User{
		Email:          email,
		HashedPassword: hashed,
		Role:           role,
		Entidad:        entidad,
		EntidadAuditor: auditor,
	}
	assert.NoError(t, testDB.Create(user).Error)

	c.Set(middleware.ContextKeyUser, user)
	return user
}

func stringToPtr(s string) *string {
	return &s
}
