package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// SeguimientoPayload carries seguimiento fields for create/update.
type SeguimientoPayload struct {
	AjusteDeID                *uint   `json:"ajuste_de_id"`
	InsumoMejora              *string `json:"insumo_mejora"`
	Indicador                 *string `json:"indicador"`
	Criterio                  *string `json:"criterio"`
	TipoAccionMejora          *string `json:"tipo_accion_mejora"`
	AccionMejoraPlanteada     *string `json:"accion_mejora_planteada"`
	ObservacionInformeCalidad *string `json:"observacion_informe_calidad"`
	DescripcionActividades    *string `json:"descripcion_actividades"`
	EvidenciaCumplimiento     *string `json:"evidencia_cumplimiento"`
	FechaInicio               *string `json:"fecha_inicio"`
	FechaFinal                *string `json:"fecha_final"`
	FechaReporte              *string `json:"fecha_reporte"`
	Estado                    *string `json:"seguimiento"`
	EnlaceEntidad             *string `json:"enlace_entidad"`
	ObservacionCalidad        *string `json:"observacion_calidad"`
}

func (p *SeguimientoPayload) sanitize() {
	p.AccionMejoraPlanteada = services.CleanTextPtr(p.AccionMejoraPlanteada)
	p.ObservacionInformeCalidad = services.CleanTextPtr(p.ObservacionInformeCalidad)
	p.DescripcionActividades = services.CleanTextPtr(p.DescripcionActividades)
	p.EvidenciaCumplimiento = services.CleanTextPtr(p.EvidenciaCumplimiento)
	p.ObservacionCalidad = services.CleanTextPtr(p.ObservacionCalidad)
}

func (p *SeguimientoPayload) applyTo(seg *models.Seguimiento) {
	if p.AjusteDeID != nil {
		seg.AjusteDeID = p.AjusteDeID
	}
	if p.InsumoMejora != nil {
		seg.InsumoMejora = p.InsumoMejora
	}
	if p.Indicador != nil {
		seg.Indicador = p.Indicador
	}
	if p.TipoAccionMejora != nil {
		seg.TipoAccionMejora = p.TipoAccionMejora
	}
	if p.AccionMejoraPlanteada != nil {
		seg.AccionMejoraPlanteada = p.AccionMejoraPlanteada
	}
	if p.ObservacionInformeCalidad != nil {
		seg.ObservacionInformeCalidad = p.ObservacionInformeCalidad
	}
	if p.DescripcionActividades != nil {
		seg.DescripcionActividades = p.DescripcionActividades
	}
	if p.EvidenciaCumplimiento != nil {
		seg.EvidenciaCumplimiento = p.EvidenciaCumplimiento
	}
	if p.FechaInicio != nil {
		seg.FechaInicio = emptyToNil(p.FechaInicio)
	}
	if p.FechaFinal != nil {
		seg.FechaFinal = emptyToNil(p.FechaFinal)
	}
	if p.FechaReporte != nil {
		seg.FechaReporte = emptyToNil(p.FechaReporte)
	}
	if p.Estado != nil {
		seg.Estado = p.Estado
	}
	if p.EnlaceEntidad != nil {
		seg.EnlaceEntidad = p.EnlaceEntidad
	}
	if p.ObservacionCalidad != nil {
		seg.ObservacionCalidad = p.ObservacionCalidad
	}
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// promoteToPlan lifts indicador/criterio/enlace values from a seguimiento
// payload onto the owning plan, mirroring how the entity fills the form once
// and expects the plan header to follow.
func (p *SeguimientoPayload) promoteToPlan(plan *models.PlanAccion) bool {
	changed := false
	if p.EnlaceEntidad != nil {
		plan.EnlaceEntidad = p.EnlaceEntidad
		changed = true
	}
	if p.Indicador != nil {
		if v := strings.TrimSpace(*p.Indicador); v != "" {
			plan.Indicador = &v
			changed = true
		}
	}
	if p.Criterio != nil {
		if v := strings.TrimSpace(*p.Criterio); v != "" {
			plan.Criterio = &v
			changed = true
		}
	}
	return changed
}

// GetSeguimientosHandler lists a plan's seguimientos in creation order.
func GetSeguimientosHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	var segs []models.Seguimiento
	if err := db.DB.Preload("UpdatedBy").
		Where("plan_id = ?", plan.ID).
		Order("id ASC").
		Find(&segs).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch seguimientos")
	}

	for i := range segs {
		segs[i].FillDerived(plan)
	}
	return c.JSON(http.StatusOK, segs)
}

// CreateSeguimientoHandler creates a tracking report under a plan and stamps
// the acting user as last editor.
func CreateSeguimientoHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	var payload SeguimientoPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	payload.sanitize()
	stripQualityObservation(&payload, user)

	seg := models.Seguimiento{PlanID: plan.ID, UpdatedByID: &user.ID}
	payload.applyTo(&seg)

	if payload.promoteToPlan(plan) {
		if err := db.DB.Save(plan).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
		}
	}

	if err := db.DB.Create(&seg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create seguimiento")
	}

	seg.UpdatedBy = user
	seg.FillDerived(plan)
	return c.JSON(http.StatusOK, seg)
}

// UpdateSeguimientoHandler applies a partial update to a tracking report.
// Plain entidad users cannot write the quality-team observation.
func UpdateSeguimientoHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	seg, err := findSeguimiento(c, plan)
	if err != nil {
		return err
	}

	var payload SeguimientoPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	payload.sanitize()
	stripQualityObservation(&payload, user)

	if payload.promoteToPlan(plan) {
		if err := db.DB.Save(plan).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
		}
	}

	payload.applyTo(seg)
	seg.UpdatedByID = &user.ID
	if err := db.DB.Save(seg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update seguimiento")
	}

	seg.UpdatedBy = user
	seg.FillDerived(plan)
	return c.JSON(http.StatusOK, seg)
}

// DeleteSeguimientoHandler removes a single tracking report.
func DeleteSeguimientoHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	seg, err := findSeguimiento(c, plan)
	if err != nil {
		return err
	}

	if err := db.DB.Delete(seg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete seguimiento")
	}
	return c.NoContent(http.StatusNoContent)
}

func findSeguimiento(c echo.Context, plan *models.PlanAccion) (*models.Seguimiento, error) {
	segID, err := strconv.Atoi(c.Param("segId"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Seguimiento no encontrado")
	}

	var seg models.Seguimiento
	if err := db.DB.First(&seg, segID).Error; err != nil || seg.PlanID != plan.ID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Seguimiento no encontrado")
	}
	return &seg, nil
}

// stripQualityObservation drops observacion_calidad from payloads of entidad
// users without auditor access.
func stripQualityObservation(p *SeguimientoPayload, user *models.User) {
	if middleware.IsPlainEntidad(user) {
		p.ObservacionCalidad = nil
	}
}

func getConfig(c echo.Context) *config.Config {
	cfg, _ := c.Get("config").(*config.Config)
	return cfg
}
