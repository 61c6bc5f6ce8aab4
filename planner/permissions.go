package planner

import (
	"regexp"
	"strings"
)

// Roles as issued by the auth service.
const (
	RoleAdmin   = "admin"
	RoleEntidad = "entidad"
	RoleAuditor = "auditor"
)

// Actor is the authenticated user as the planner needs to see it.
type Actor struct {
	Email          string
	Role           string
	Entidad        string
	EntidadAuditor bool
}

// AuditorCapable reports whether the actor can act as an evaluator.
func (a Actor) AuditorCapable() bool {
	return a.Role == RoleAdmin || a.Role == RoleAuditor ||
		(a.Role == RoleEntidad && a.EntidadAuditor)
}

// Permissions is the editability table for the draft form. All flags
// are derived, never stored.
type Permissions struct {
	CanEditEntityName         bool
	CanEditPlanFields         bool
	CanEditFollowUpFields     bool
	CanEditActivities         bool
	CanEditQualityObservation bool
	CanEditEvaluatorVerdict   bool
	CanEditEntityLink         bool
	FollowUpSectionVisible    bool
	CanCreateCorrectiveAction bool
}

// PermissionsFor derives the editability table from the actor and the
// current draft. Pure function: same inputs, same table.
func PermissionsFor(actor Actor, form *Form) Permissions {
	estado := form.Get(FieldEstado)
	verdict := form.Get(FieldAprobadoEvaluador)
	segEstado := form.Get(FieldSeguimientoEstado)

	isAdmin := actor.Role == RoleAdmin
	isEntidad := actor.Role == RoleEntidad

	// Entity follow-up edits lock once the report leaves Pendiente or
	// the entity already saved activity text for it.
	entityLocked := segEstado != SeguimientoPendiente || form.SavedByEntidad

	p := Permissions{
		// The entity name comes from the profile on creation and is
		// immutable afterwards
		CanEditEntityName:         (isAdmin || isEntidad) && form.PlanID == 0,
		CanEditPlanFields:         (isAdmin || isEntidad) && estado == EstadoBorrador,
		CanEditFollowUpFields:     isAdmin || (isEntidad && !entityLocked),
		CanEditQualityObservation: actor.AuditorCapable(),
		CanEditEvaluatorVerdict:   actor.AuditorCapable() && verdict == "",
		FollowUpSectionVisible:    verdict == VerdictAprobado,
		CanCreateCorrectiveAction: verdict == VerdictRechazado && (isAdmin || isEntidad),
	}
	p.CanEditActivities = p.CanEditFollowUpFields
	p.CanEditEntityLink = p.CanEditPlanFields || p.CanEditFollowUpFields
	return p
}

// CanEditField resolves a single field key against the table.
func (p Permissions) CanEditField(key string) bool {
	switch key {
	case FieldNombreEntidad:
		return p.CanEditEntityName
	case FieldEnlaceEntidad:
		return p.CanEditEntityLink
	case FieldEstado, FieldIndicador, FieldCriterio, FieldTipoAccionMejora,
		FieldInsumoMejora, FieldObservacionInformeCalidad, FieldAccionMejoraPlanteada,
		FieldPlanDescripcionActividades, FieldPlanEvidenciaCumplimiento,
		FieldFechaInicio, FieldFechaFinal:
		return p.CanEditPlanFields
	case FieldAprobadoEvaluador:
		return p.CanEditEvaluatorVerdict
	case FieldObservacionCalidad:
		return p.CanEditQualityObservation
	case FieldFechaReporte, FieldSeguimientoEstado,
		FieldDescripcionActividades, FieldEvidenciaCumplimiento:
		return p.CanEditFollowUpFields
	default:
		return false
	}
}

var actionSplitRe = regexp.MustCompile(`[\n;,.]+`)

// MultiActionWarning reports whether the proposed action text looks
// like several actions crammed into one plan. Non-blocking nudge, only
// shown while the plan is still a draft.
func MultiActionWarning(form *Form) bool {
	if form.Get(FieldEstado) != EstadoBorrador {
		return false
	}
	segments := 0
	for _, part := range actionSplitRe.Split(form.Get(FieldAccionMejoraPlanteada), -1) {
		if strings.TrimSpace(part) != "" {
			segments++
		}
	}
	return segments >= 2
}
