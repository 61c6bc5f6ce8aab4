package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// PlanPayload carries plan fields for create/update. Pointer fields
// distinguish "absent" from "set to empty" so partial updates only touch
// what the client sent.
type PlanPayload struct {
	NombreEntidad             *string `json:"nombre_entidad"`
	EnlaceEntidad             *string `json:"enlace_entidad"`
	Estado                    *string `json:"estado"`
	AprobadoEvaluador         *string `json:"aprobado_evaluador"`
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
	Seguimiento               *string `json:"seguimiento"`
	ObservacionCalidad        *string `json:"observacion_calidad"`
}

func (p *PlanPayload) sanitize() {
	p.AccionMejoraPlanteada = services.CleanTextPtr(p.AccionMejoraPlanteada)
	p.ObservacionInformeCalidad = services.CleanTextPtr(p.ObservacionInformeCalidad)
	p.DescripcionActividades = services.CleanTextPtr(p.DescripcionActividades)
	p.EvidenciaCumplimiento = services.CleanTextPtr(p.EvidenciaCumplimiento)
	p.ObservacionCalidad = services.CleanTextPtr(p.ObservacionCalidad)
}

// applyTo copies the set fields onto the plan. NombreEntidad is deliberately
// never copied on update; it is immutable after creation.
func (p *PlanPayload) applyTo(plan *models.PlanAccion) {
	if p.EnlaceEntidad != nil {
		plan.EnlaceEntidad = p.EnlaceEntidad
	}
	if p.Estado != nil {
		plan.Estado = p.Estado
	}
	if p.AprobadoEvaluador != nil {
		plan.AprobadoEvaluador = p.AprobadoEvaluador
	}
	if p.InsumoMejora != nil {
		plan.InsumoMejora = p.InsumoMejora
	}
	if p.Indicador != nil {
		plan.Indicador = p.Indicador
	}
	if p.Criterio != nil {
		plan.Criterio = p.Criterio
	}
	if p.TipoAccionMejora != nil {
		plan.TipoAccionMejora = p.TipoAccionMejora
	}
	if p.AccionMejoraPlanteada != nil {
		plan.AccionMejoraPlanteada = p.AccionMejoraPlanteada
	}
	if p.ObservacionInformeCalidad != nil {
		plan.ObservacionInformeCalidad = p.ObservacionInformeCalidad
	}
	if p.DescripcionActividades != nil {
		plan.DescripcionActividades = p.DescripcionActividades
	}
	if p.EvidenciaCumplimiento != nil {
		plan.EvidenciaCumplimiento = p.EvidenciaCumplimiento
	}
	if p.FechaInicio != nil {
		plan.FechaInicio = p.FechaInicio
	}
	if p.FechaFinal != nil {
		plan.FechaFinal = p.FechaFinal
	}
	if p.Seguimiento != nil {
		plan.Seguimiento = p.Seguimiento
	}
	if p.ObservacionCalidad != nil {
		plan.ObservacionCalidad = p.ObservacionCalidad
	}
}

// GetPlanesHandler lists plans. Plain entidad users only see their own
// entity's plans; admins and auditors see everything.
func GetPlanesHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.PlanAccion{})
	if middleware.IsPlainEntidad(user) && strings.TrimSpace(user.Entidad) != "" {
		query = query.Where("LOWER(nombre_entidad) = LOWER(?)", strings.TrimSpace(user.Entidad))
	}

	if q := c.QueryParam("q"); q != "" {
		query = query.Where("nombre_entidad LIKE ?", "%"+q+"%")
	}

	skip := 0
	limit := 50
	if v := c.QueryParam("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}

	var planes []models.PlanAccion
	if err := query.Order("id DESC").Offset(skip).Limit(limit).Find(&planes).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch plans")
	}

	return c.JSON(http.StatusOK, planes)
}

// CreatePlanHandler creates a plan. For entidad users the entity name always
// comes from their profile, never from the payload.
func CreatePlanHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var payload PlanPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	payload.sanitize()

	plan := models.PlanAccion{CreatedBy: &user.ID}
	payload.applyTo(&plan)

	if user.Role == models.RoleEntidad {
		plan.NombreEntidad = strings.TrimSpace(user.Entidad)
	} else if payload.NombreEntidad != nil {
		plan.NombreEntidad = strings.TrimSpace(*payload.NombreEntidad)
	}
	if plan.NombreEntidad == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "nombre_entidad es requerido")
	}
	if plan.Estado == nil {
		estado := models.EstadoBorrador
		plan.Estado = &estado
	}

	if err := db.DB.Create(&plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create plan")
	}

	return c.JSON(http.StatusOK, plan)
}

// GetPlanHandler returns a single plan with its seguimientos embedded.
func GetPlanHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	var segs []models.Seguimiento
	if err := db.DB.Preload("UpdatedBy").
		Where("plan_id = ?", plan.ID).
		Order("id ASC").
		Find(&segs).Error; err == nil {
		for i := range segs {
			segs[i].FillDerived(plan)
		}
		plan.Seguimientos = segs
	}

	return c.JSON(http.StatusOK, plan)
}

// UpdatePlanHandler applies a partial update. A change of evaluator verdict
// triggers a notification email to the entity's responsible official.
func UpdatePlanHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	var payload PlanPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	payload.sanitize()

	prevVerdict := ""
	if plan.AprobadoEvaluador != nil {
		prevVerdict = *plan.AprobadoEvaluador
	}

	payload.applyTo(plan)

	if err := db.DB.Save(plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
	}

	if payload.AprobadoEvaluador != nil && *payload.AprobadoEvaluador != prevVerdict && *payload.AprobadoEvaluador != "" {
		notifyVerdictChange(c, plan, *payload.AprobadoEvaluador)
	}

	return c.JSON(http.StatusOK, plan)
}

// DeletePlanHandler removes a plan and all of its seguimientos.
func DeletePlanHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	if err := db.DB.Where("plan_id = ?", plan.ID).Delete(&models.Seguimiento{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete seguimientos")
	}
	if err := db.DB.Delete(plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete plan")
	}

	return c.NoContent(http.StatusNoContent)
}

// EnviarRevisionHandler moves a plan into review.
func EnviarRevisionHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	estado := models.EstadoRevision
	plan.Estado = &estado
	if err := db.DB.Save(plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
	}
	return c.JSON(http.StatusOK, plan)
}

// AgregarObservacionHandler records a quality-team observation and marks the
// plan as observed. Auditor/admin only (enforced by route middleware).
func AgregarObservacionHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	var payload struct {
		Observacion string `json:"observacion"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	obs := services.CleanText(payload.Observacion)
	estado := models.EstadoObservado
	plan.ObservacionCalidad = &obs
	plan.Estado = &estado
	if err := db.DB.Save(plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
	}
	return c.JSON(http.StatusOK, plan)
}

// CambiarEstadoHandler sets an arbitrary workflow status (auditor/admin).
func CambiarEstadoHandler(c echo.Context) error {
	plan, err := findPlan(c)
	if err != nil {
		return err
	}

	estado := c.QueryParam("estado")
	if estado == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "estado es requerido")
	}

	plan.Estado = &estado
	if err := db.DB.Save(plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update plan")
	}
	return c.JSON(http.StatusOK, plan)
}

// IndicadoresUsadosHandler returns the distinct indicators that already have
// at least one seguimiento, scoped to the caller's entity for plain entidad
// users.
func IndicadoresUsadosHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.Seguimiento{}).
		Joins("JOIN plan_accion ON seguimiento.plan_id = plan_accion.id").
		Where("seguimiento.indicador IS NOT NULL AND TRIM(seguimiento.indicador) != ''")

	if middleware.IsPlainEntidad(user) && strings.TrimSpace(user.Entidad) != "" {
		query = query.Where("LOWER(plan_accion.nombre_entidad) = LOWER(?)", strings.TrimSpace(user.Entidad))
	}

	var indicadores []string
	if err := query.Distinct().Pluck("seguimiento.indicador", &indicadores).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch indicators")
	}

	out := make([]string, 0, len(indicadores))
	for _, ind := range indicadores {
		if v := strings.TrimSpace(ind); v != "" {
			out = append(out, v)
		}
	}

	return c.JSON(http.StatusOK, out)
}

// findPlan resolves the :id route param to a plan or a 404.
func findPlan(c echo.Context) (*models.PlanAccion, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "No encontrado")
	}

	var plan models.PlanAccion
	if err := db.DB.First(&plan, id).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "No encontrado")
	}
	return &plan, nil
}

// notifyVerdictChange sends the verdict email; failures are logged inside the
// email service, never surfaced to the API caller.
func notifyVerdictChange(c echo.Context, plan *models.PlanAccion, verdict string) {
	cfg := getConfig(c)
	if cfg == nil {
		return
	}

	if plan.CreatedBy == nil {
		return
	}
	var owner models.User
	if err := db.DB.First(&owner, *plan.CreatedBy).Error; err != nil {
		return
	}

	email := services.BuildVerdictEmail(owner.Email, plan.NombreEntidad, plan.NumPlanMejora, verdict)
	services.SendEmailAsync(cfg, email)
}
