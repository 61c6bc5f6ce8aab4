package models

import "time"

// Seguimiento tracking status constants
const (
	SeguimientoPendiente  = "Pendiente"
	SeguimientoEnProgreso = "En progreso"
	SeguimientoFinalizado = "Finalizado"
)

// Seguimiento is a periodic tracking report against a plan. AjusteDeID is a
// reference to a prior seguimiento this one adjusts; it is not ownership.
type Seguimiento struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PlanID     uint  `gorm:"not null;index" json:"plan_id"`
	AjusteDeID *uint `json:"ajuste_de_id,omitempty"`

	InsumoMejora              *string `gorm:"size:255" json:"insumo_mejora,omitempty"`
	Indicador                 *string `json:"indicador,omitempty"`
	TipoAccionMejora          *string `gorm:"size:255" json:"tipo_accion_mejora,omitempty"`
	AccionMejoraPlanteada     *string `gorm:"type:text" json:"accion_mejora_planteada,omitempty"`
	ObservacionInformeCalidad *string `gorm:"type:text" json:"observacion_informe_calidad,omitempty"`
	DescripcionActividades    *string `gorm:"type:text" json:"descripcion_actividades,omitempty"`
	EvidenciaCumplimiento     *string `gorm:"type:text" json:"evidencia_cumplimiento,omitempty"`
	FechaInicio               *string `gorm:"size:10" json:"fecha_inicio,omitempty"`
	FechaFinal                *string `gorm:"size:10" json:"fecha_final,omitempty"`
	FechaReporte              *string `gorm:"size:10" json:"fecha_reporte,omitempty"`
	Estado                    *string `gorm:"column:seguimiento;size:255" json:"seguimiento,omitempty"`
	EnlaceEntidad             *string `gorm:"type:text" json:"enlace_entidad,omitempty"`

	// Quality-team annotation (auditor/admin only)
	ObservacionCalidad *string `gorm:"type:text" json:"observacion_calidad,omitempty"`

	UpdatedByID *uint `gorm:"index" json:"-"`
	UpdatedBy   *User `gorm:"foreignKey:UpdatedByID" json:"-"`

	// Derived fields surfaced to API consumers
	UpdatedByEmail string `gorm:"-" json:"updated_by_email,omitempty"`
	Entidad        string `gorm:"-" json:"entidad,omitempty"`
	Criterio       string `gorm:"-" json:"criterio,omitempty"`
}

// TableName specifies the table name for Seguimiento model
func (Seguimiento) TableName() string {
	return "seguimiento"
}

// FillDerived populates the gorm-ignored response fields from the preloaded
// UpdatedBy user and the owning plan.
func (s *Seguimiento) FillDerived(plan *PlanAccion) {
	if s.UpdatedBy != nil {
		s.UpdatedByEmail = s.UpdatedBy.Email
		if s.Entidad == "" {
			s.Entidad = s.UpdatedBy.Entidad
		}
	}
	if plan != nil {
		if s.Entidad == "" {
			s.Entidad = plan.NombreEntidad
		}
		if plan.Criterio != nil {
			s.Criterio = *plan.Criterio
		}
	}
}

// EstadoOrDefault returns the tracking status, defaulting to Pendiente.
func (s *Seguimiento) EstadoOrDefault() string {
	if s.Estado == nil || *s.Estado == "" {
		return SeguimientoPendiente
	}
	return *s.Estado
}
