package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan lifecycle status constants
const (
	EstadoBorrador  = "Borrador"
	EstadoPendiente = "Pendiente"
	EstadoRevision  = "En revisión"
	EstadoObservado = "Observado"
)

// Evaluator verdict constants (empty until the evaluator rules)
const (
	VerdictAprobado  = "Aprobado"
	VerdictRechazado = "Rechazado"
)

// Improvement action type constants
const (
	AccionPreventiva = "Preventiva"
	AccionCorrectiva = "Correctiva"
)

// PlanAccion is an entity's improvement-plan record. It owns an ordered list
// of Seguimiento children which are deleted with it.
type PlanAccion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NumPlanMejora string `gorm:"size:50;not null" json:"num_plan_mejora"`

	// NombreEntidad is set once at creation from the owning user's profile
	// and never updated afterwards.
	NombreEntidad string  `gorm:"size:255;not null" json:"nombre_entidad"`
	EnlaceEntidad *string `gorm:"type:text" json:"enlace_entidad,omitempty"`

	// Workflow
	Estado             *string `gorm:"size:50;default:Borrador" json:"estado,omitempty"`
	AprobadoEvaluador  *string `gorm:"size:50" json:"aprobado_evaluador,omitempty"`

	// Content
	InsumoMejora              *string `gorm:"size:255" json:"insumo_mejora,omitempty"`
	Indicador                 *string `gorm:"size:255" json:"indicador,omitempty"`
	Criterio                  *string `gorm:"size:255" json:"criterio,omitempty"`
	TipoAccionMejora          *string `gorm:"size:255" json:"tipo_accion_mejora,omitempty"`
	AccionMejoraPlanteada     *string `gorm:"type:text" json:"accion_mejora_planteada,omitempty"`
	ObservacionInformeCalidad *string `gorm:"type:text" json:"observacion_informe_calidad,omitempty"`
	DescripcionActividades    *string `gorm:"type:text" json:"descripcion_actividades,omitempty"`
	EvidenciaCumplimiento     *string `gorm:"type:text" json:"evidencia_cumplimiento,omitempty"`
	FechaInicio               *string `gorm:"size:10" json:"fecha_inicio,omitempty"`
	FechaFinal                *string `gorm:"size:10" json:"fecha_final,omitempty"`
	Seguimiento               *string `gorm:"size:255" json:"seguimiento,omitempty"`

	// Quality-team annotation (auditor/admin only)
	ObservacionCalidad *string `gorm:"type:text" json:"observacion_calidad,omitempty"`

	CreatedBy *uint `gorm:"index" json:"created_by,omitempty"`

	Seguimientos []Seguimiento `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"seguimientos,omitempty"`
}

// BeforeCreate hook generates the short plan number
func (p *PlanAccion) BeforeCreate(tx *gorm.DB) error {
	if p.NumPlanMejora == "" {
		p.NumPlanMejora = uuid.New().String()[:8]
	}
	return nil
}

// TableName specifies the table name for PlanAccion model
func (PlanAccion) TableName() string {
	return "plan_accion"
}

// EstadoOrDefault returns the plan status, defaulting to Borrador.
func (p *PlanAccion) EstadoOrDefault() string {
	if p.Estado == nil || *p.Estado == "" {
		return EstadoBorrador
	}
	return *p.Estado
}

// IsAprobado reports whether the evaluator approved the plan, which unlocks
// follow-up tracking.
func (p *PlanAccion) IsAprobado() bool {
	return p.AprobadoEvaluador != nil && *p.AprobadoEvaluador == VerdictAprobado
}
