package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// loadExportGroups collects every plan the caller may see together with
// its follow-up reports, in the same visibility scope as GET /seguimiento.
func loadExportGroups(c echo.Context) ([]services.ExportGroup, error) {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.PlanAccion{}).Order("id DESC")
	if middleware.IsPlainEntidad(user) {
		query = query.Where("LOWER(nombre_entidad) = LOWER(?)", user.Entidad)
	}

	var planes []models.PlanAccion
	if err := query.Find(&planes).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Error al consultar planes")
	}

	groups := make([]services.ExportGroup, 0, len(planes))
	for i := range planes {
		plan := &planes[i]

		var seguimientos []models.Seguimiento
		if err := db.DB.Preload("UpdatedBy").
			Where("plan_id = ?", plan.ID).
			Order("id ASC").
			Find(&seguimientos).Error; err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "Error al consultar seguimientos")
		}
		for j := range seguimientos {
			if middleware.IsPlainEntidad(user) {
				seguimientos[j].ObservacionCalidad = nil
			}
			seguimientos[j].FillDerived(plan)
		}
		if middleware.IsPlainEntidad(user) {
			plan.ObservacionCalidad = nil
		}

		groups = append(groups, services.ExportGroup{Plan: plan, Seguimientos: seguimientos})
	}
	return groups, nil
}

func exportFilename(title, ext string) string {
	base := strings.ReplaceAll(title, " ", "_")
	return fmt.Sprintf("%s_%s.%s", base, time.Now().Format("2006-01-02"), ext)
}

// ExportSeguimientosCSVHandler streams the follow-up table as CSV,
// GET /export/seguimientos.csv
func ExportSeguimientosCSVHandler(c echo.Context) error {
	groups, err := loadExportGroups(c)
	if err != nil {
		return err
	}

	rows := services.BuildExportRows(groups)
	title := services.BuildExportTitle(groups)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, exportFilename(title, "csv")))
	c.Response().WriteHeader(http.StatusOK)

	return services.WriteSeguimientosCSV(c.Response(), rows)
}

// ExportSeguimientosXLSXHandler returns the follow-up table as a
// workbook, GET /export/seguimientos.xlsx
func ExportSeguimientosXLSXHandler(c echo.Context) error {
	groups, err := loadExportGroups(c)
	if err != nil {
		return err
	}

	rows := services.BuildExportRows(groups)
	title := services.BuildExportTitle(groups)

	buf, err := services.WriteSeguimientosXLSX(rows)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al generar el archivo")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, exportFilename(title, "xlsx")))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportSeguimientosPDFHandler prints the follow-up table to PDF,
// GET /export/seguimientos.pdf
func ExportSeguimientosPDFHandler(c echo.Context) error {
	groups, err := loadExportGroups(c)
	if err != nil {
		return err
	}

	rows := services.BuildExportRows(groups)
	title := services.BuildExportTitle(groups)

	pdf, err := services.GenerateSeguimientosPDF(c.Request().Context(), title, rows)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al generar el PDF")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, exportFilename(title, "pdf")))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
