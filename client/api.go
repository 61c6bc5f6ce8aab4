package client

import (
	"context"
	"fmt"
	"net/url"
)

// Plan mirrors the plan_accion resource.
type Plan struct {
	ID                        uint    `json:"id"`
	NumPlanMejora             string  `json:"num_plan_mejora"`
	NombreEntidad             string  `json:"nombre_entidad"`
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
	CreatedAt                 string  `json:"created_at"`
	UpdatedAt                 string  `json:"updated_at"`
	Seguimientos              []Seguimiento `json:"seguimientos,omitempty"`
}

// Seguimiento mirrors the seguimiento resource.
type Seguimiento struct {
	ID                        uint    `json:"id"`
	PlanID                    uint    `json:"plan_id"`
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
	UpdatedByEmail            string  `json:"updated_by_email"`
	Entidad                   string  `json:"entidad"`
	CreatedAt                 string  `json:"created_at"`
	UpdatedAt                 string  `json:"updated_at"`
}

// Profile is the authenticated user as returned by /auth/me.
type Profile struct {
	ID             uint    `json:"id"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	Entidad        string  `json:"entidad"`
	EntidadPerm    *string `json:"entidad_perm"`
	EntidadAuditor bool    `json:"entidad_auditor"`
}

// CatalogEntry is one indicator row from the entity's report catalog.
type CatalogEntry struct {
	Indicador *string `json:"indicador"`
	Criterio  *string `json:"criterio"`
	Accion    *string `json:"accion"`
	Insumo    *string `json:"insumo"`
}

// Catalog is an entity's full indicator catalog.
type Catalog struct {
	Entidad     string         `json:"entidad"`
	Indicadores []CatalogEntry `json:"indicadores"`
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.Get(ctx, "/auth/me", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlanes returns the plans visible to the caller.
func (c *Client) ListPlanes(ctx context.Context) ([]Plan, error) {
	var planes []Plan
	if err := c.Get(ctx, "/seguimiento/", &planes); err != nil {
		return nil, err
	}
	return planes, nil
}

// GetPlan fetches one plan with its follow-ups embedded.
func (c *Client) GetPlan(ctx context.Context, id uint) (*Plan, error) {
	var p Plan
	if err := c.Get(ctx, fmt.Sprintf("/seguimiento/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlan creates a plan from the given fields.
func (c *Client) CreatePlan(ctx context.Context, fields map[string]any) (*Plan, error) {
	var p Plan
	if err := c.Post(ctx, "/seguimiento/", fields, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePlan updates a plan's fields.
func (c *Client) UpdatePlan(ctx context.Context, id uint, fields map[string]any) (*Plan, error) {
	var p Plan
	if err := c.Put(ctx, fmt.Sprintf("/seguimiento/%d", id), fields, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePlan removes a plan and all its follow-ups.
func (c *Client) DeletePlan(ctx context.Context, id uint) error {
	return c.Delete(ctx, fmt.Sprintf("/seguimiento/%d", id))
}

// ListSeguimientos returns the follow-ups of one plan in creation order.
func (c *Client) ListSeguimientos(ctx context.Context, planID uint) ([]Seguimiento, error) {
	var items []Seguimiento
	if err := c.Get(ctx, fmt.Sprintf("/seguimiento/%d/seguimiento", planID), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateSeguimiento adds a follow-up report to a plan.
func (c *Client) CreateSeguimiento(ctx context.Context, planID uint, fields map[string]any) (*Seguimiento, error) {
	var s Seguimiento
	if err := c.Post(ctx, fmt.Sprintf("/seguimiento/%d/seguimiento", planID), fields, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSeguimiento updates a follow-up report.
func (c *Client) UpdateSeguimiento(ctx context.Context, planID, segID uint, fields map[string]any) (*Seguimiento, error) {
	var s Seguimiento
	if err := c.Put(ctx, fmt.Sprintf("/seguimiento/%d/seguimiento/%d", planID, segID), fields, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSeguimiento removes a follow-up report.
func (c *Client) DeleteSeguimiento(ctx context.Context, planID, segID uint) error {
	return c.Delete(ctx, fmt.Sprintf("/seguimiento/%d/seguimiento/%d", planID, segID))
}

// UsedIndicadores lists the indicator names already used by the
// caller's entity.
func (c *Client) UsedIndicadores(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Get(ctx, "/seguimiento/indicadores_usados", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetCatalog fetches the indicator catalog for an entity. Returns an
// APIError with status 404 when the entity has no catalog.
func (c *Client) GetCatalog(ctx context.Context, entidad string) (*Catalog, error) {
	var cat Catalog
	if err := c.Get(ctx, "/reports/"+url.PathEscape(entidad), &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
