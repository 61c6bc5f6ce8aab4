package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"planes_mejora_go/db"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// ReporteEntrada is one catalog row in a bulk load request.
type ReporteEntrada struct {
	Entidad   string  `json:"entidad"`
	Indicador string  `json:"indicador"`
	Criterio  string  `json:"criterio"`
	Accion    string  `json:"accion"`
	Insumo    *string `json:"insumo"`
}

// ReporteEntradaLista wraps the bulk load payload.
type ReporteEntradaLista struct {
	Reportes []ReporteEntrada `json:"reportes"`
}

// GetReportesHandler returns every catalog row, GET /reports
func GetReportesHandler(c echo.Context) error {
	var reportes []models.Reporte
	if err := db.DB.Find(&reportes).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al consultar reportes")
	}
	return c.JSON(http.StatusOK, reportes)
}

// GetReportesPorEntidadHandler returns an entity's catalog in the shape
// the form autoloader expects, GET /reports/:entidad
func GetReportesPorEntidadHandler(c echo.Context) error {
	nombre := c.Param("entidad")

	// SQLite's LOWER() only folds ASCII, so accented entity names are
	// matched in Go instead of in the query.
	var todos []models.Reporte
	if err := db.DB.Find(&todos).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al consultar reportes")
	}
	registros := make([]models.Reporte, 0, len(todos))
	for _, r := range todos {
		if strings.EqualFold(r.Entidad, nombre) {
			registros = append(registros, r)
		}
	}
	if len(registros) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No records found for that entity")
	}

	indicadores := make([]map[string]any, 0, len(registros))
	for _, r := range registros {
		if r.Indicador == "" || r.Criterio == "" {
			continue
		}
		indicadores = append(indicadores, map[string]any{
			"indicador": r.Indicador,
			"criterio":  r.Criterio,
			"accion":    r.Accion,
			"insumo":    r.Insumo,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"entidad":     registros[0].Entidad,
		"indicadores": indicadores,
	})
}

// CargarReportesHandler bulk-inserts catalog rows, POST /reports
func CargarReportesHandler(c echo.Context) error {
	var payload ReporteEntradaLista
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
	}

	nuevos := make([]models.Reporte, 0, len(payload.Reportes))
	for _, r := range payload.Reportes {
		nuevos = append(nuevos, models.Reporte{
			Entidad:   services.CleanText(r.Entidad),
			Indicador: services.CleanText(r.Indicador),
			Criterio:  services.CleanText(r.Criterio),
			Accion:    services.CleanText(r.Accion),
			Insumo:    services.CleanTextPtr(r.Insumo),
		})
	}

	if len(nuevos) > 0 {
		if err := db.DB.Create(&nuevos).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Error al guardar reportes")
		}
	}

	return c.JSON(http.StatusOK, map[string]int{"insertados": len(nuevos)})
}

// ClearReportesHandler deletes the whole catalog, DELETE /reports
func ClearReportesHandler(c echo.Context) error {
	result := db.DB.Where("1 = 1").Delete(&models.Reporte{})
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al eliminar reportes")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"detail": fmt.Sprintf("%d registros eliminados", result.RowsAffected),
	})
}
