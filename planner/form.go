// Package planner holds the client-side lifecycle state for improvement
// plans and their follow-up reports: the plan list, the active
// selection, the flat draft form, and every mutation that touches them.
package planner

import (
	"strings"

	"planes_mejora_go/client"
)

// Field keys of the flat draft form. Plan and follow-up both have
// descripcion_actividades and evidencia_cumplimiento, so the plan's
// copies get a plan_ prefix to keep the flat view addressable.
const (
	FieldNombreEntidad             = "nombre_entidad"
	FieldEnlaceEntidad             = "enlace_entidad"
	FieldEstado                    = "estado"
	FieldAprobadoEvaluador         = "aprobado_evaluador"
	FieldInsumoMejora              = "insumo_mejora"
	FieldIndicador                 = "indicador"
	FieldCriterio                  = "criterio"
	FieldTipoAccionMejora          = "tipo_accion_mejora"
	FieldObservacionInformeCalidad = "observacion_informe_calidad"
	FieldAccionMejoraPlanteada     = "accion_mejora_planteada"
	FieldPlanDescripcionActividades = "plan_descripcion_actividades"
	FieldPlanEvidenciaCumplimiento  = "plan_evidencia_cumplimiento"
	FieldFechaInicio               = "fecha_inicio"
	FieldFechaFinal                = "fecha_final"

	FieldFechaReporte           = "fecha_reporte"
	FieldSeguimientoEstado      = "seguimiento"
	FieldDescripcionActividades = "descripcion_actividades"
	FieldEvidenciaCumplimiento  = "evidencia_cumplimiento"
	FieldObservacionCalidad     = "observacion_calidad"
)

// Plan lifecycle states and evaluator verdicts.
const (
	EstadoBorrador  = "Borrador"
	EstadoPendiente = "Pendiente"

	VerdictAprobado  = "Aprobado"
	VerdictRechazado = "Rechazado"

	SeguimientoPendiente  = "Pendiente"
	SeguimientoEnProgreso = "En progreso"
	SeguimientoFinalizado = "Finalizado"
)

// RequiredPlanFields must all be non-blank before a draft plan is
// allowed to reach the server.
var RequiredPlanFields = []string{
	FieldNombreEntidad,
	FieldEnlaceEntidad,
	FieldIndicador,
	FieldCriterio,
	FieldTipoAccionMejora,
	FieldObservacionInformeCalidad,
	FieldAccionMejoraPlanteada,
	FieldPlanDescripcionActividades,
	FieldPlanEvidenciaCumplimiento,
	FieldFechaInicio,
	FieldFechaFinal,
}

// FieldLabels maps field keys to the labels used in validation messages.
var FieldLabels = map[string]string{
	FieldNombreEntidad:              "Nombre de la entidad",
	FieldEnlaceEntidad:              "Enlace de la entidad",
	FieldIndicador:                  "Indicador",
	FieldCriterio:                   "Criterio",
	FieldTipoAccionMejora:           "Tipo de acción de mejora",
	FieldObservacionInformeCalidad:  "Acción recomendada (informe de calidad)",
	FieldAccionMejoraPlanteada:      "Acción de mejora planteada",
	FieldPlanDescripcionActividades: "Descripción de actividades",
	FieldPlanEvidenciaCumplimiento:  "Evidencia de cumplimiento",
	FieldFechaInicio:                "Fecha de inicio",
	FieldFechaFinal:                 "Fecha final",
	FieldFechaReporte:               "Fecha de reporte",
}

// Form is the flat draft the form screen edits. It is a projection of
// one plan plus one of its follow-ups; the manager owns it and rebuilds
// it on every selection change.
type Form struct {
	PlanID     uint
	FollowUpID uint

	// SavedByEntidad marks the active follow-up as already reported by
	// the owning entity, which locks its fields for entidad users.
	SavedByEntidad bool

	values map[string]string
}

// EmptyForm returns a fresh draft for a plan that does not exist yet.
func EmptyForm() *Form {
	return &Form{
		values: map[string]string{
			FieldEstado:            EstadoBorrador,
			FieldSeguimientoEstado: SeguimientoPendiente,
		},
	}
}

// Get returns the current value of a field, blank if unset.
func (f *Form) Get(key string) string {
	return f.values[key]
}

// Set stores a field value. Permission checks live in the manager, not
// here.
func (f *Form) Set(key, value string) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
}

// Blank reports whether a field is empty or whitespace.
func (f *Form) Blank(key string) bool {
	return strings.TrimSpace(f.values[key]) == ""
}

// Clone returns an independent copy of the form.
func (f *Form) Clone() *Form {
	cp := &Form{
		PlanID:         f.PlanID,
		FollowUpID:     f.FollowUpID,
		SavedByEntidad: f.SavedByEntidad,
		values:         make(map[string]string, len(f.values)),
	}
	for k, v := range f.values {
		cp.values[k] = v
	}
	return cp
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ProjectForm builds the flat draft from a plan and one of its
// follow-ups. Either argument may be nil. The projection is pure: it
// never mutates its inputs and plan fields never leak into follow-up
// keys or vice versa.
func ProjectForm(plan *client.Plan, seg *client.Seguimiento) *Form {
	f := EmptyForm()

	if plan != nil {
		f.PlanID = plan.ID
		f.Set(FieldNombreEntidad, plan.NombreEntidad)
		f.Set(FieldEnlaceEntidad, deref(plan.EnlaceEntidad))
		if estado := deref(plan.Estado); estado != "" {
			f.Set(FieldEstado, estado)
		}
		f.Set(FieldAprobadoEvaluador, deref(plan.AprobadoEvaluador))
		f.Set(FieldInsumoMejora, deref(plan.InsumoMejora))
		f.Set(FieldIndicador, deref(plan.Indicador))
		f.Set(FieldCriterio, deref(plan.Criterio))
		f.Set(FieldTipoAccionMejora, deref(plan.TipoAccionMejora))
		f.Set(FieldObservacionInformeCalidad, deref(plan.ObservacionInformeCalidad))
		f.Set(FieldAccionMejoraPlanteada, deref(plan.AccionMejoraPlanteada))
		f.Set(FieldPlanDescripcionActividades, deref(plan.DescripcionActividades))
		f.Set(FieldPlanEvidenciaCumplimiento, deref(plan.EvidenciaCumplimiento))
		f.Set(FieldFechaInicio, deref(plan.FechaInicio))
		f.Set(FieldFechaFinal, deref(plan.FechaFinal))
		f.Set(FieldObservacionCalidad, deref(plan.ObservacionCalidad))
	}

	if seg != nil {
		f.FollowUpID = seg.ID
		f.Set(FieldFechaReporte, deref(seg.FechaReporte))
		if estado := deref(seg.Estado); estado != "" {
			f.Set(FieldSeguimientoEstado, estado)
		}
		f.Set(FieldDescripcionActividades, deref(seg.DescripcionActividades))
		f.Set(FieldEvidenciaCumplimiento, deref(seg.EvidenciaCumplimiento))
		if obs := deref(seg.ObservacionCalidad); obs != "" {
			f.Set(FieldObservacionCalidad, obs)
		}
		if deref(seg.ObservacionInformeCalidad) != "" {
			f.Set(FieldObservacionInformeCalidad, deref(seg.ObservacionInformeCalidad))
		}
	}

	return f
}

// SavedByEntidad reports whether the follow-up was last saved by the
// given actor's entity account: the updater email matches
// case-insensitively and activity text was actually written.
func SavedByEntidad(seg *client.Seguimiento, actorEmail string) bool {
	if seg == nil {
		return false
	}
	return seg.UpdatedByEmail != "" &&
		strings.EqualFold(seg.UpdatedByEmail, actorEmail) &&
		strings.TrimSpace(deref(seg.DescripcionActividades)) != ""
}
