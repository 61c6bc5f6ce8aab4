package main

import (
	"log"
	"path/filepath"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/handlers"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := config.ValidateJWTSecret(cfg.JWTSecret, cfg.Environment); err != nil {
		log.Fatalf("Invalid JWT secret: %v", err)
	}

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.User{}, &models.PlanAccion{}, &models.Seguimiento{}, &models.Reporte{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Evidence storage (R2 when configured, local disk otherwise)
	services.InitializeStorage(cfg)

	// Create Echo instance
	e := echo.New()

	// The SPA forces trailing slashes on some route families, normalize
	// before routing so both spellings hit the same handler
	e.Pre(echomiddleware.RemoveTrailingSlash())

	// Middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// Make config available to handlers
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", cfg)
			return next(c)
		}
	})

	// Locally stored evidence files
	e.Static("/uploads", filepath.Clean(cfg.UploadDir))

	// Public routes
	e.POST("/auth/token", handlers.TokenHandler)

	// Authenticated routes
	auth := e.Group("")
	auth.Use(middleware.RequireAuth())
	{
		auth.GET("/auth/me", handlers.MeHandler)

		// Plans and their follow-up reports
		auth.GET("/seguimiento", handlers.GetPlanesHandler)
		auth.GET("/seguimiento/indicadores_usados", handlers.IndicadoresUsadosHandler)
		auth.GET("/seguimiento/:id", handlers.GetPlanHandler)
		auth.PUT("/seguimiento/:id", handlers.UpdatePlanHandler)

		// Creating, deleting and submitting plans is for the owning
		// entity or an admin; auditors only annotate and verdict.
		captura := middleware.RequireRoles(models.RoleAdmin, models.RoleEntidad)
		auth.POST("/seguimiento", handlers.CreatePlanHandler, captura)
		auth.DELETE("/seguimiento/:id", handlers.DeletePlanHandler, captura)
		auth.POST("/seguimiento/:id/enviar_revision", handlers.EnviarRevisionHandler, captura)
		auth.POST("/seguimiento/:id/estado", handlers.CambiarEstadoHandler,
			middleware.RequireRoles(models.RoleAdmin, models.RoleAuditor))

		auth.GET("/seguimiento/:id/seguimiento", handlers.GetSeguimientosHandler)
		auth.POST("/seguimiento/:id/seguimiento", handlers.CreateSeguimientoHandler)
		auth.PUT("/seguimiento/:id/seguimiento/:segId", handlers.UpdateSeguimientoHandler)
		auth.DELETE("/seguimiento/:id/seguimiento/:segId", handlers.DeleteSeguimientoHandler)

		// Evaluator annotations
		observacion := auth.Group("/seguimiento/:id/observacion")
		observacion.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleAuditor))
		observacion.POST("", handlers.AgregarObservacionHandler)

		// Evidence upload
		auth.POST("/files/upload", handlers.UploadEvidenceHandler)

		// Indicator catalogs
		auth.GET("/reports", handlers.GetReportesHandler)
		auth.GET("/reports/:entidad", handlers.GetReportesPorEntidadHandler)
		catalogAdmin := auth.Group("/reports")
		catalogAdmin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			catalogAdmin.POST("", handlers.CargarReportesHandler)
			catalogAdmin.DELETE("", handlers.ClearReportesHandler)
		}

		// Exports
		auth.GET("/export/seguimientos.csv", handlers.ExportSeguimientosCSVHandler)
		auth.GET("/export/seguimientos.xlsx", handlers.ExportSeguimientosXLSXHandler)
		auth.GET("/export/seguimientos.pdf", handlers.ExportSeguimientosPDFHandler)

		// User administration
		users := auth.Group("/users")
		users.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			users.GET("", handlers.ListUsersHandler)
			users.POST("", handlers.CreateUserHandler)
			users.PATCH("/:id/role", handlers.UpdateUserRoleHandler)
			users.PATCH("/:id/perm", handlers.UpdateUserPermHandler)
			users.PATCH("/:id/auditor", handlers.UpdateUserAuditorHandler)
			users.PATCH("/:id/password", handlers.ResetUserPasswordHandler)
			users.DELETE("/:id", handlers.DeleteUserHandler)
		}
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
