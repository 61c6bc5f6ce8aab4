package planner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"planes_mejora_go/client"
)

// API is the slice of the HTTP client the manager needs. *client.Client
// satisfies it; tests substitute a fake.
type API interface {
	ListPlanes(ctx context.Context) ([]client.Plan, error)
	GetPlan(ctx context.Context, id uint) (*client.Plan, error)
	CreatePlan(ctx context.Context, fields map[string]any) (*client.Plan, error)
	UpdatePlan(ctx context.Context, id uint, fields map[string]any) (*client.Plan, error)
	DeletePlan(ctx context.Context, id uint) error
	ListSeguimientos(ctx context.Context, planID uint) ([]client.Seguimiento, error)
	CreateSeguimiento(ctx context.Context, planID uint, fields map[string]any) (*client.Seguimiento, error)
	UpdateSeguimiento(ctx context.Context, planID, segID uint, fields map[string]any) (*client.Seguimiento, error)
	DeleteSeguimiento(ctx context.Context, planID, segID uint) error
	UsedIndicadores(ctx context.Context) ([]string, error)
	GetCatalog(ctx context.Context, entidad string) (*client.Catalog, error)
}

// SaveOutcome records what SaveDraft actually persisted. The plan and
// follow-up writes are independent, so either flag can be false while
// the other is true.
type SaveOutcome struct {
	PlanID        uint
	PlanSaved     bool
	FollowUpSaved bool
}

// Manager is the single source of truth for the plan list, the active
// selection, and the draft form. All mutations go through it.
type Manager struct {
	mu    sync.Mutex
	api   API
	actor Actor

	plans    []client.Plan
	children []client.Seguimiento

	activePlanID uint
	form         *Form
	missing      []string
	used         map[string]struct{}
}

// NewManager creates a manager for the given actor.
func NewManager(api API, actor Actor) *Manager {
	m := &Manager{
		api:   api,
		actor: actor,
		used:  map[string]struct{}{},
	}
	m.form = m.emptyDraft()
	return m
}

func (m *Manager) emptyDraft() *Form {
	f := EmptyForm()
	if m.actor.Role == RoleEntidad && m.actor.Entidad != "" {
		f.Set(FieldNombreEntidad, m.actor.Entidad)
	}
	return f
}

// Form returns a copy of the current draft. Callers edit through
// UpdateField, never through the copy.
func (m *Manager) Form() *Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form.Clone()
}

// Plans returns a copy of the cached plan list.
func (m *Manager) Plans() []client.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]client.Plan, len(m.plans))
	copy(out, m.plans)
	return out
}

// Children returns a copy of the active plan's follow-ups.
func (m *Manager) Children() []client.Seguimiento {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]client.Seguimiento, len(m.children))
	copy(out, m.children)
	return out
}

// ActivePlanID returns the selected plan's id, zero when drafting a new
// plan.
func (m *Manager) ActivePlanID() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activePlanID
}

// Missing returns the field keys that blocked the last SaveDraft.
func (m *Manager) Missing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.missing))
	copy(out, m.missing)
	return out
}

// MissingMessage renders the last validation failure for display.
func (m *Manager) MissingMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.missing) == 0 {
		return ""
	}
	labels := make([]string, 0, len(m.missing))
	for _, key := range m.missing {
		if label, ok := FieldLabels[key]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, key)
		}
	}
	return "Campos obligatorios sin diligenciar: " + strings.Join(labels, ", ")
}

// Permissions derives the current editability table.
func (m *Manager) Permissions() Permissions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PermissionsFor(m.actor, m.form)
}

// LoadPlans fetches all visible plans. On the first successful load the
// first plan is auto-selected if nothing is selected yet.
func (m *Manager) LoadPlans(ctx context.Context) error {
	planes, err := m.api.ListPlanes(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.plans = planes
	selectFirst := m.activePlanID == 0 && len(planes) > 0
	var firstID uint
	if selectFirst {
		firstID = planes[0].ID
	}
	m.mu.Unlock()

	if selectFirst {
		return m.SelectPlan(ctx, firstID)
	}
	return nil
}

// ReloadUsedIndicadores refreshes the set backing the indicator
// uniqueness check.
func (m *Manager) ReloadUsedIndicadores(ctx context.Context) error {
	names, err := m.api.UsedIndicadores(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.used = make(map[string]struct{}, len(names))
	for _, n := range names {
		if t := strings.TrimSpace(n); t != "" {
			m.used[t] = struct{}{}
		}
	}
	m.mu.Unlock()
	return nil
}

// CanUseIndicador reports whether an indicator may be chosen for the
// current draft. Indicators already attached to another plan are
// rejected; the plan that owns one keeps it. Best effort only, the
// server remains the authority.
func (m *Manager) CanUseIndicador(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canUseIndicadorLocked(name)
}

func (m *Manager) canUseIndicadorLocked(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	if _, taken := m.used[name]; !taken {
		return true
	}
	return m.activePlanID != 0 && m.form.Get(FieldIndicador) == name
}

func (m *Manager) cachedPlan(id uint) *client.Plan {
	for i := range m.plans {
		if m.plans[i].ID == id {
			return &m.plans[i]
		}
	}
	return nil
}

// SelectPlan makes a plan active: refreshes it from the server, loads
// its follow-ups, and rebuilds the draft from the plan plus its most
// recent follow-up. A failed refresh is logged and selection proceeds
// on cached data.
func (m *Manager) SelectPlan(ctx context.Context, id uint) error {
	m.mu.Lock()
	plan := m.cachedPlan(id)
	m.mu.Unlock()

	fresh, err := m.api.GetPlan(ctx, id)
	if err != nil {
		log.Printf("[WARNING] Could not refresh plan %d, using cached data: %v", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if fresh != nil {
		if cached := m.cachedPlan(id); cached != nil {
			*cached = *fresh
		} else {
			m.plans = append(m.plans, *fresh)
		}
		plan = m.cachedPlan(id)
	}
	if plan == nil {
		return fmt.Errorf("plan %d no encontrado", id)
	}

	var children []client.Seguimiento
	switch {
	case fresh != nil && fresh.Seguimientos != nil:
		children = fresh.Seguimientos
	default:
		m.mu.Unlock()
		children, err = m.api.ListSeguimientos(ctx, id)
		m.mu.Lock()
		if err != nil {
			log.Printf("[WARNING] Could not load follow-ups for plan %d: %v", id, err)
			children = nil
		}
	}
	m.children = children

	var last *client.Seguimiento
	if len(children) > 0 {
		last = &children[len(children)-1]
	}

	m.activePlanID = id
	m.form = ProjectForm(plan, last)
	m.form.SavedByEntidad = SavedByEntidad(last, m.actor.Email)
	return nil
}

// StartNewDraft clears the selection and resets the draft to an empty
// plan template.
func (m *Manager) StartNewDraft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activePlanID = 0
	m.children = nil
	m.missing = nil
	m.form = m.emptyDraft()
}

// ResetCurrent discards unsaved edits by rebuilding the draft from the
// cached copy of the active plan and follow-up.
func (m *Manager) ResetCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing = nil

	if m.activePlanID == 0 {
		m.form = m.emptyDraft()
		return
	}

	plan := m.cachedPlan(m.activePlanID)
	var seg *client.Seguimiento
	for i := range m.children {
		if m.children[i].ID == m.form.FollowUpID {
			seg = &m.children[i]
			break
		}
	}
	if seg == nil && len(m.children) > 0 {
		seg = &m.children[len(m.children)-1]
	}

	m.form = ProjectForm(plan, seg)
	m.form.SavedByEntidad = SavedByEntidad(seg, m.actor.Email)
}

// UpdateField applies one field edit to the draft. No network call.
// Edits the actor is not allowed to make are rejected before touching
// the draft.
func (m *Manager) UpdateField(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	perms := PermissionsFor(m.actor, m.form)
	if !perms.CanEditField(key) {
		return &client.ValidationError{Field: key, Detail: "el campo no es editable en el estado actual"}
	}

	if key == FieldIndicador && !m.canUseIndicadorLocked(value) {
		return &client.ValidationError{Field: key, Detail: "el indicador ya está asociado a otro plan"}
	}

	m.form.Set(key, value)
	return nil
}

// validateReportDate enforces that the follow-up report date lies
// within [plan creation date, today].
func (m *Manager) validateReportDate(plan *client.Plan) error {
	value := strings.TrimSpace(m.form.Get(FieldFechaReporte))
	if value == "" {
		return nil
	}
	reported, err := time.Parse("2006-01-02", value)
	if err != nil {
		return &client.ValidationError{Field: FieldFechaReporte, Detail: "fecha de reporte inválida"}
	}

	today := time.Now().Truncate(24 * time.Hour)
	if reported.After(today.Add(24*time.Hour - time.Second)) {
		return &client.ValidationError{Field: FieldFechaReporte, Detail: "la fecha de reporte no puede ser futura"}
	}

	if plan != nil && plan.CreatedAt != "" {
		if created, err := time.Parse(time.RFC3339, plan.CreatedAt); err == nil {
			createdDay := created.Truncate(24 * time.Hour)
			if reported.Before(createdDay) {
				return &client.ValidationError{Field: FieldFechaReporte, Detail: "la fecha de reporte es anterior a la creación del plan"}
			}
		}
	}
	return nil
}

func (m *Manager) planPayload() map[string]any {
	f := m.form
	payload := map[string]any{
		"nombre_entidad":              f.Get(FieldNombreEntidad),
		"enlace_entidad":              f.Get(FieldEnlaceEntidad),
		"estado":                      f.Get(FieldEstado),
		"aprobado_evaluador":          f.Get(FieldAprobadoEvaluador),
		"insumo_mejora":               f.Get(FieldInsumoMejora),
		"indicador":                   f.Get(FieldIndicador),
		"criterio":                    f.Get(FieldCriterio),
		"tipo_accion_mejora":          f.Get(FieldTipoAccionMejora),
		"observacion_informe_calidad": f.Get(FieldObservacionInformeCalidad),
		"accion_mejora_planteada":     f.Get(FieldAccionMejoraPlanteada),
		"descripcion_actividades":     f.Get(FieldPlanDescripcionActividades),
		"evidencia_cumplimiento":      f.Get(FieldPlanEvidenciaCumplimiento),
		"fecha_inicio":                f.Get(FieldFechaInicio),
		"fecha_final":                 f.Get(FieldFechaFinal),
	}
	if m.actor.AuditorCapable() {
		payload["observacion_calidad"] = f.Get(FieldObservacionCalidad)
	}
	return payload
}

func (m *Manager) followUpPayload() map[string]any {
	f := m.form
	payload := map[string]any{
		"fecha_reporte":           f.Get(FieldFechaReporte),
		"seguimiento":             f.Get(FieldSeguimientoEstado),
		"descripcion_actividades": f.Get(FieldDescripcionActividades),
		"evidencia_cumplimiento":  f.Get(FieldEvidenciaCumplimiento),
		"enlace_entidad":          f.Get(FieldEnlaceEntidad),
		"indicador":               f.Get(FieldIndicador),
		"criterio":                f.Get(FieldCriterio),
	}
	if m.actor.AuditorCapable() {
		payload["observacion_calidad"] = f.Get(FieldObservacionCalidad)
	}
	return payload
}

func (m *Manager) mergePlan(updated *client.Plan) {
	if updated == nil {
		return
	}
	if cached := m.cachedPlan(updated.ID); cached != nil {
		*cached = *updated
	} else {
		m.plans = append(m.plans, *updated)
	}
}

// SaveDraft validates the draft and persists it: the plan write first,
// then the follow-up write when the draft points at one. The two writes
// are an explicit saga, not a transaction; the outcome records each
// step so callers can tell a partial save from a full one.
//
// Returns (nil, nil) when required plan fields are missing; the blocked
// fields are available via Missing. No network call happens in that
// case.
func (m *Manager) SaveDraft(ctx context.Context, overrides map[string]string) (*SaveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range overrides {
		m.form.Set(k, v)
	}

	if m.form.Blank(FieldNombreEntidad) {
		return nil, &client.ValidationError{Field: FieldNombreEntidad, Detail: "el nombre de la entidad es obligatorio"}
	}

	if m.form.PlanID == 0 || m.form.Get(FieldEstado) == EstadoBorrador {
		var missing []string
		for _, key := range RequiredPlanFields {
			if m.form.Blank(key) {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			m.missing = missing
			return nil, nil
		}
	}
	m.missing = nil

	plan := m.cachedPlan(m.form.PlanID)
	if m.form.FollowUpID != 0 {
		if err := m.validateReportDate(plan); err != nil {
			return nil, err
		}
	}

	if m.form.PlanID == 0 {
		payload := m.planPayload()
		m.mu.Unlock()
		created, err := m.api.CreatePlan(ctx, payload)
		m.mu.Lock()
		if err != nil {
			return nil, err
		}
		m.form.PlanID = created.ID
		m.activePlanID = created.ID
		m.mergePlan(created)
	}

	outcome := &SaveOutcome{PlanID: m.form.PlanID}

	planPayload := m.planPayload()
	planID := m.form.PlanID
	m.mu.Unlock()
	updated, err := m.api.UpdatePlan(ctx, planID, planPayload)
	m.mu.Lock()
	if err != nil {
		log.Printf("[WARNING] Plan %d update failed, continuing with follow-up save: %v", planID, err)
	} else {
		outcome.PlanSaved = true
		m.mergePlan(updated)
	}

	if ind := strings.TrimSpace(m.form.Get(FieldIndicador)); ind != "" {
		m.used[ind] = struct{}{}
	}

	if m.form.FollowUpID == 0 {
		return outcome, nil
	}

	segPayload := m.followUpPayload()
	segID := m.form.FollowUpID
	m.mu.Unlock()
	seg, err := m.api.UpdateSeguimiento(ctx, planID, segID, segPayload)
	m.mu.Lock()
	if err != nil {
		log.Printf("[WARNING] Follow-up %d update failed after plan save: %v", segID, err)
		return outcome, err
	}
	outcome.FollowUpSaved = true

	seg.UpdatedByEmail = m.actor.Email
	m.mergeChild(seg)
	m.form.SavedByEntidad = SavedByEntidad(seg, m.actor.Email)
	return outcome, nil
}

func (m *Manager) mergeChild(seg *client.Seguimiento) {
	for i := range m.children {
		if m.children[i].ID == seg.ID {
			m.children[i] = *seg
			return
		}
	}
	m.children = append(m.children, *seg)
}

// CreateFollowUp adds a new follow-up report to the active plan, seeded
// Pendiente with the current entity link, and makes it the active
// draft. adjustsID links the new report to the one it supersedes.
func (m *Manager) CreateFollowUp(ctx context.Context, adjustsID *uint) (*client.Seguimiento, error) {
	m.mu.Lock()

	if m.form.Blank(FieldNombreEntidad) {
		m.mu.Unlock()
		return nil, &client.ValidationError{Field: FieldNombreEntidad, Detail: "el nombre de la entidad es obligatorio"}
	}

	if m.form.PlanID == 0 {
		payload := m.planPayload()
		m.mu.Unlock()
		created, err := m.api.CreatePlan(ctx, payload)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.form.PlanID = created.ID
		m.activePlanID = created.ID
		m.mergePlan(created)
	}

	fields := map[string]any{
		"seguimiento":    SeguimientoPendiente,
		"enlace_entidad": m.form.Get(FieldEnlaceEntidad),
	}
	if adjustsID != nil {
		fields["ajuste_de_id"] = *adjustsID
	}
	planID := m.form.PlanID
	m.mu.Unlock()

	seg, err := m.api.CreateSeguimiento(ctx, planID, fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeChild(seg)
	m.applyFollowUpToForm(seg)
	return seg, nil
}

// applyFollowUpToForm copies a follow-up's fields into the draft while
// leaving plan-level fields untouched.
func (m *Manager) applyFollowUpToForm(seg *client.Seguimiento) {
	m.form.FollowUpID = seg.ID
	m.form.Set(FieldFechaReporte, deref(seg.FechaReporte))
	if estado := deref(seg.Estado); estado != "" {
		m.form.Set(FieldSeguimientoEstado, estado)
	} else {
		m.form.Set(FieldSeguimientoEstado, SeguimientoPendiente)
	}
	m.form.Set(FieldDescripcionActividades, deref(seg.DescripcionActividades))
	m.form.Set(FieldEvidenciaCumplimiento, deref(seg.EvidenciaCumplimiento))
	if obs := deref(seg.ObservacionCalidad); obs != "" {
		m.form.Set(FieldObservacionCalidad, obs)
	}
	m.form.SavedByEntidad = SavedByEntidad(seg, m.actor.Email)
}

// resetFollowUpDraft clears the follow-up half of the form.
func (m *Manager) resetFollowUpDraft() {
	m.form.FollowUpID = 0
	m.form.Set(FieldFechaReporte, "")
	m.form.Set(FieldSeguimientoEstado, SeguimientoPendiente)
	m.form.Set(FieldDescripcionActividades, "")
	m.form.Set(FieldEvidenciaCumplimiento, "")
	m.form.SavedByEntidad = false
}

// DeleteFollowUp removes a follow-up. If it was active, the last
// remaining follow-up is promoted to active, or the draft resets to an
// empty report when none remain. The used-indicator set is refreshed
// afterwards.
func (m *Manager) DeleteFollowUp(ctx context.Context, id uint) error {
	m.mu.Lock()
	planID := m.form.PlanID
	m.mu.Unlock()

	if planID == 0 || id == 0 {
		return &client.ValidationError{Detail: "no hay un plan seleccionado"}
	}

	if err := m.api.DeleteSeguimiento(ctx, planID, id); err != nil {
		return err
	}

	m.mu.Lock()
	wasActive := m.form.FollowUpID == id
	kept := m.children[:0]
	for _, child := range m.children {
		if child.ID != id {
			kept = append(kept, child)
		}
	}
	m.children = kept

	if wasActive {
		if len(m.children) > 0 {
			last := m.children[len(m.children)-1]
			m.applyFollowUpToForm(&last)
		} else {
			m.resetFollowUpDraft()
		}
	}
	m.mu.Unlock()

	if err := m.ReloadUsedIndicadores(ctx); err != nil {
		log.Printf("[WARNING] Could not refresh used indicators: %v", err)
	}
	return nil
}

// DeletePlan removes a plan and, server-side, all its follow-ups. A
// zero id deletes the active plan.
func (m *Manager) DeletePlan(ctx context.Context, id uint) error {
	m.mu.Lock()
	if id == 0 {
		id = m.activePlanID
	}
	m.mu.Unlock()
	if id == 0 {
		return &client.ValidationError{Detail: "no hay un plan seleccionado"}
	}

	if err := m.api.DeletePlan(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.plans[:0]
	for _, p := range m.plans {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	m.plans = kept

	if m.activePlanID == id {
		m.activePlanID = 0
		m.children = nil
		m.form = m.emptyDraft()
	}
	return nil
}

// SelectFollowUp makes the follow-up at the given list position active.
// Out-of-range indexes are clamped. Plan-level draft fields are
// preserved.
func (m *Manager) SelectFollowUp(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.children) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(m.children) {
		index = len(m.children) - 1
	}
	seg := m.children[index]
	m.applyFollowUpToForm(&seg)
}

// CreatePlanFromAction creates a new draft plan pre-filled with an
// action and indicator inherited from context. Used for the corrective
// action flow after a rejection.
func (m *Manager) CreatePlanFromAction(ctx context.Context, actionText, indicador, criterio string) (*client.Plan, error) {
	m.mu.Lock()
	nombre := m.form.Get(FieldNombreEntidad)
	if strings.TrimSpace(nombre) == "" {
		nombre = m.actor.Entidad
	}
	m.mu.Unlock()

	if strings.TrimSpace(nombre) == "" {
		return nil, &client.ValidationError{Field: FieldNombreEntidad, Detail: "el nombre de la entidad es obligatorio"}
	}

	fields := map[string]any{
		"nombre_entidad":          nombre,
		"accion_mejora_planteada": actionText,
		"indicador":               indicador,
		"criterio":                criterio,
		"estado":                  EstadoBorrador,
	}
	created, err := m.api.CreatePlan(ctx, fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergePlan(created)
	m.activePlanID = created.ID
	m.children = nil
	m.form = ProjectForm(created, nil)
	return created, nil
}

// PreviousActions returns the proposed actions of other plans sharing
// the draft's indicator, oldest first. Feeds the corrective flow so the
// entity can see what was already tried.
func (m *Manager) PreviousActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	indicador := strings.TrimSpace(m.form.Get(FieldIndicador))
	if indicador == "" {
		return nil
	}

	var actions []string
	for i := range m.plans {
		p := &m.plans[i]
		if p.ID == m.activePlanID {
			continue
		}
		if strings.TrimSpace(deref(p.Indicador)) != indicador {
			continue
		}
		if accion := strings.TrimSpace(deref(p.AccionMejoraPlanteada)); accion != "" {
			actions = append(actions, accion)
		}
	}
	return actions
}

// SortPlans orders the cached plan list by id.
func (m *Manager) SortPlans(desc bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Slice(m.plans, func(i, j int) bool {
		if desc {
			return m.plans[i].ID > m.plans[j].ID
		}
		return m.plans[i].ID < m.plans[j].ID
	})
}

// PlanWithChildren pairs a plan with its follow-ups for export.
type PlanWithChildren struct {
	Plan         client.Plan
	Seguimientos []client.Seguimiento
}

// LoadAllForExport fetches every visible plan together with its
// follow-ups. Plans whose follow-up fetch fails are included with an
// empty list rather than dropped.
func (m *Manager) LoadAllForExport(ctx context.Context) ([]PlanWithChildren, error) {
	planes, err := m.api.ListPlanes(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]PlanWithChildren, 0, len(planes))
	for _, p := range planes {
		children := p.Seguimientos
		if children == nil {
			children, err = m.api.ListSeguimientos(ctx, p.ID)
			if err != nil {
				log.Printf("[WARNING] Could not load follow-ups for plan %d during export: %v", p.ID, err)
				children = nil
			}
		}
		groups = append(groups, PlanWithChildren{Plan: p, Seguimientos: children})
	}
	return groups, nil
}
