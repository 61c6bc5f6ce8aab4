package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"planes_mejora_go/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory planner.API that records every call.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	plans      map[uint]*client.Plan
	children   map[uint][]client.Seguimiento
	nextPlanID uint
	nextSegID  uint

	used    []string
	catalog *client.Catalog

	getPlanErr    error
	updatePlanErr error
	updateSegErr  error
	catalogErr    error

	lastPlanFields map[string]any
	lastSegFields  map[string]any
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		plans:    map[uint]*client.Plan{},
		children: map[uint][]client.Seguimiento{},
	}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) seedPlan(p client.Plan) *client.Plan {
	f.nextPlanID++
	p.ID = f.nextPlanID
	f.plans[p.ID] = &p
	return &p
}

func (f *fakeAPI) seedSeguimiento(planID uint, s client.Seguimiento) *client.Seguimiento {
	f.nextSegID++
	s.ID = f.nextSegID
	s.PlanID = planID
	f.children[planID] = append(f.children[planID], s)
	return &s
}

func (f *fakeAPI) ListPlanes(ctx context.Context) ([]client.Plan, error) {
	f.record("ListPlanes")
	var out []client.Plan
	for id := uint(1); id <= f.nextPlanID; id++ {
		if p, ok := f.plans[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetPlan(ctx context.Context, id uint) (*client.Plan, error) {
	f.record("GetPlan")
	if f.getPlanErr != nil {
		return nil, f.getPlanErr
	}
	p, ok := f.plans[id]
	if !ok {
		return nil, &client.APIError{Status: 404, Detail: "No encontrado"}
	}
	cp := *p
	cp.Seguimientos = append([]client.Seguimiento{}, f.children[id]...)
	return &cp, nil
}

func (f *fakeAPI) CreatePlan(ctx context.Context, fields map[string]any) (*client.Plan, error) {
	f.record("CreatePlan")
	f.lastPlanFields = fields
	nombre, _ := fields["nombre_entidad"].(string)
	return f.seedPlan(client.Plan{NombreEntidad: nombre}), nil
}

func (f *fakeAPI) UpdatePlan(ctx context.Context, id uint, fields map[string]any) (*client.Plan, error) {
	f.record("UpdatePlan")
	if f.updatePlanErr != nil {
		return nil, f.updatePlanErr
	}
	f.lastPlanFields = fields
	p, ok := f.plans[id]
	if !ok {
		return nil, &client.APIError{Status: 404, Detail: "No encontrado"}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeAPI) DeletePlan(ctx context.Context, id uint) error {
	f.record("DeletePlan")
	delete(f.plans, id)
	delete(f.children, id)
	return nil
}

func (f *fakeAPI) ListSeguimientos(ctx context.Context, planID uint) ([]client.Seguimiento, error) {
	f.record("ListSeguimientos")
	return append([]client.Seguimiento{}, f.children[planID]...), nil
}

func (f *fakeAPI) CreateSeguimiento(ctx context.Context, planID uint, fields map[string]any) (*client.Seguimiento, error) {
	f.record("CreateSeguimiento")
	f.lastSegFields = fields
	var s client.Seguimiento
	if v, ok := fields["seguimiento"].(string); ok {
		s.Estado = &v
	}
	return f.seedSeguimiento(planID, s), nil
}

func (f *fakeAPI) UpdateSeguimiento(ctx context.Context, planID, segID uint, fields map[string]any) (*client.Seguimiento, error) {
	f.record("UpdateSeguimiento")
	if f.updateSegErr != nil {
		return nil, f.updateSegErr
	}
	f.lastSegFields = fields
	s := client.Seguimiento{ID: segID, PlanID: planID}
	if v, ok := fields["descripcion_actividades"].(string); ok && v != "" {
		s.DescripcionActividades = &v
	}
	if v, ok := fields["seguimiento"].(string); ok && v != "" {
		s.Estado = &v
	}
	return &s, nil
}

func (f *fakeAPI) DeleteSeguimiento(ctx context.Context, planID, segID uint) error {
	f.record("DeleteSeguimiento")
	kept := f.children[planID][:0]
	for _, s := range f.children[planID] {
		if s.ID != segID {
			kept = append(kept, s)
		}
	}
	f.children[planID] = kept
	return nil
}

func (f *fakeAPI) UsedIndicadores(ctx context.Context) ([]string, error) {
	f.record("UsedIndicadores")
	return f.used, nil
}

func (f *fakeAPI) GetCatalog(ctx context.Context, entidad string) (*client.Catalog, error) {
	f.record("GetCatalog")
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	if f.catalog == nil {
		return nil, &client.APIError{Status: 404, Detail: "No records found for that entity"}
	}
	return f.catalog, nil
}

func entidadActor() Actor {
	return Actor{Email: "entidad@acme.gov.co", Role: RoleEntidad, Entidad: "ACME"}
}

func adminActor() Actor {
	return Actor{Email: "admin@demo.gov.co", Role: RoleAdmin}
}

func fillRequiredPlanFields(t *testing.T, m *Manager) {
	t.Helper()
	values := map[string]string{
		FieldEnlaceEntidad:              "Juana Pérez - juana@acme.gov.co",
		FieldIndicador:                  "Indicador PQRS",
		FieldCriterio:                   "Criterio PQRS",
		FieldTipoAccionMejora:           "Preventiva",
		FieldObservacionInformeCalidad:  "Mejorar los tiempos de respuesta",
		FieldAccionMejoraPlanteada:      "Implementar tablero de seguimiento",
		FieldPlanDescripcionActividades: "Diseño y puesta en marcha del tablero",
		FieldPlanEvidenciaCumplimiento:  "Acta de reunión",
		FieldFechaInicio:                "2026-01-01",
		FieldFechaFinal:                 "2026-06-30",
	}
	for k, v := range values {
		require.NoError(t, m.UpdateField(k, v))
	}
}

func TestSaveDraftMissingFieldsMakesNoNetworkCalls(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, entidadActor())

	require.NoError(t, m.UpdateField(FieldIndicador, "Indicador PQRS"))

	outcome, err := m.SaveDraft(context.Background(), nil)
	assert.Nil(t, outcome)
	assert.NoError(t, err)
	assert.Zero(t, api.callCount(), "validation failures must not reach the network")

	missing := m.Missing()
	assert.Contains(t, missing, FieldEnlaceEntidad)
	assert.Contains(t, missing, FieldCriterio)
	assert.NotContains(t, missing, FieldNombreEntidad, "prefilled from the actor's entity")
	assert.NotContains(t, missing, FieldIndicador)
	assert.Contains(t, m.MissingMessage(), "Campos obligatorios sin diligenciar")
	assert.Contains(t, m.MissingMessage(), "Criterio")
}

func TestSaveDraftBlankEntityName(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, adminActor())

	_, err := m.SaveDraft(context.Background(), nil)
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, FieldNombreEntidad, vErr.Field)
	assert.Zero(t, api.callCount())
}

func TestSaveDraftCreatesAndUpdatesNewPlan(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, entidadActor())
	fillRequiredPlanFields(t, m)

	outcome, err := m.SaveDraft(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.PlanSaved)
	assert.False(t, outcome.FollowUpSaved)
	assert.NotZero(t, outcome.PlanID)
	assert.Equal(t, outcome.PlanID, m.ActivePlanID())
	assert.Empty(t, m.Missing())

	assert.Equal(t, "ACME", api.lastPlanFields["nombre_entidad"])
	assert.Equal(t, "Indicador PQRS", api.lastPlanFields["indicador"])
	// Plain entity accounts never write the quality observation.
	_, hasObs := api.lastPlanFields["observacion_calidad"]
	assert.False(t, hasObs)
}

func TestSaveDraftOverridesApplyBeforeValidation(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, entidadActor())
	fillRequiredPlanFields(t, m)

	outcome, err := m.SaveDraft(context.Background(), map[string]string{
		FieldEstado: EstadoPendiente,
	})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, EstadoPendiente, api.lastPlanFields["estado"])
}

// setupSelectedPlan loads a manager with one plan and one follow-up and
// makes them active.
func setupSelectedPlan(t *testing.T, api *fakeAPI, actor Actor, estado string) *Manager {
	t.Helper()
	plan := api.seedPlan(client.Plan{
		NombreEntidad: "ACME",
		Estado:        &estado,
		CreatedAt:     "2026-01-10T08:00:00Z",
	})
	api.seedSeguimiento(plan.ID, client.Seguimiento{})

	m := NewManager(api, actor)
	require.NoError(t, m.LoadPlans(context.Background()))
	require.Equal(t, plan.ID, m.ActivePlanID())
	return m
}

func TestSaveDraftContinuesAfterPlanUpdateFailure(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoPendiente)
	api.updatePlanErr = errors.New("plan write refused")

	outcome, err := m.SaveDraft(context.Background(), map[string]string{
		FieldDescripcionActividades: "Se ejecutó la actividad",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.PlanSaved)
	assert.True(t, outcome.FollowUpSaved, "follow-up save proceeds despite the plan failure")
}

func TestSaveDraftReportsFollowUpFailure(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoPendiente)
	api.updateSegErr = errors.New("seguimiento write refused")

	outcome, err := m.SaveDraft(context.Background(), nil)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.PlanSaved)
	assert.False(t, outcome.FollowUpSaved)
}

func TestSaveDraftStampsEditorAndLocksEntity(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, entidadActor(), EstadoPendiente)

	require.NoError(t, m.UpdateField(FieldDescripcionActividades, "Se realizó la encuesta"))
	outcome, err := m.SaveDraft(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, outcome.FollowUpSaved)

	form := m.Form()
	assert.True(t, form.SavedByEntidad, "entity report with activities locks the follow-up")
	assert.False(t, m.Permissions().CanEditFollowUpFields)
}

func TestSaveDraftRejectsFutureReportDate(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoPendiente)

	future := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	_, err := m.SaveDraft(context.Background(), map[string]string{FieldFechaReporte: future})
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, FieldFechaReporte, vErr.Field)
}

func TestSaveDraftRejectsReportDateBeforePlanCreation(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoPendiente)

	_, err := m.SaveDraft(context.Background(), map[string]string{FieldFechaReporte: "2026-01-05"})
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, FieldFechaReporte, vErr.Field)
}

func TestSelectPlanFallsBackToCachedData(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	plan := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado})
	api.seedSeguimiento(plan.ID, client.Seguimiento{})

	m := NewManager(api, adminActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	api.getPlanErr = errors.New("temporarily unreachable")
	require.NoError(t, m.SelectPlan(context.Background(), plan.ID))
	assert.Equal(t, plan.ID, m.ActivePlanID())
	assert.Equal(t, "ACME", m.Form().Get(FieldNombreEntidad))
}

func TestSelectPlanActivatesMostRecentFollowUp(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	plan := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado})
	api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("primer reporte")})
	last := api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("último reporte")})

	m := NewManager(api, adminActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	form := m.Form()
	assert.Equal(t, last.ID, form.FollowUpID)
	assert.Equal(t, "último reporte", form.Get(FieldDescripcionActividades))
}

func TestSelectFollowUpPreservesPlanFields(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoBorrador
	plan := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado})
	api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("reporte uno")})
	api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("reporte dos")})

	m := NewManager(api, adminActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	// Unsaved plan-level edit must survive switching between reports.
	require.NoError(t, m.UpdateField(FieldAccionMejoraPlanteada, "Acción editada sin guardar"))

	m.SelectFollowUp(0)
	form := m.Form()
	assert.Equal(t, "reporte uno", form.Get(FieldDescripcionActividades))
	assert.Equal(t, "Acción editada sin guardar", form.Get(FieldAccionMejoraPlanteada))

	// Out-of-range indexes clamp instead of failing.
	m.SelectFollowUp(99)
	assert.Equal(t, "reporte dos", m.Form().Get(FieldDescripcionActividades))
	m.SelectFollowUp(-5)
	assert.Equal(t, "reporte uno", m.Form().Get(FieldDescripcionActividades))
}

func TestIndicatorUniqueness(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	owner := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado, Indicador: strp("Indicador PQRS")})
	api.used = []string{"Indicador PQRS"}

	m := NewManager(api, entidadActor())
	require.NoError(t, m.ReloadUsedIndicadores(context.Background()))

	// A new draft cannot take an indicator another plan owns.
	assert.False(t, m.CanUseIndicador("Indicador PQRS"))
	err := m.UpdateField(FieldIndicador, "Indicador PQRS")
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)

	assert.True(t, m.CanUseIndicador("Indicador libre"))
	assert.True(t, m.CanUseIndicador("  "))

	// The plan that owns the indicator keeps it.
	require.NoError(t, m.LoadPlans(context.Background()))
	require.Equal(t, owner.ID, m.ActivePlanID())
	assert.True(t, m.CanUseIndicador("Indicador PQRS"))
}

func TestCreateFollowUpSeedsPendingReport(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, entidadActor(), EstadoPendiente)
	require.NoError(t, m.UpdateField(FieldEnlaceEntidad, "Juana Pérez - juana@acme.gov.co"))

	adjusts := uint(1)
	seg, err := m.CreateFollowUp(context.Background(), &adjusts)
	require.NoError(t, err)

	assert.Equal(t, SeguimientoPendiente, api.lastSegFields["seguimiento"])
	assert.Equal(t, "Juana Pérez - juana@acme.gov.co", api.lastSegFields["enlace_entidad"])
	assert.Equal(t, adjusts, api.lastSegFields["ajuste_de_id"])

	form := m.Form()
	assert.Equal(t, seg.ID, form.FollowUpID)
	assert.Equal(t, "ACME", form.Get(FieldNombreEntidad), "plan fields stay in place")
	assert.False(t, form.SavedByEntidad)
}

func TestDeleteFollowUpPromotesLastRemaining(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	plan := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado})
	api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("reporte uno")})
	second := api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("reporte dos")})
	api.seedSeguimiento(plan.ID, client.Seguimiento{DescripcionActividades: strp("reporte tres")})

	m := NewManager(api, adminActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	m.SelectFollowUp(1)
	require.Equal(t, second.ID, m.Form().FollowUpID)

	require.NoError(t, m.DeleteFollowUp(context.Background(), second.ID))
	assert.Len(t, m.Children(), 2)
	assert.Equal(t, "reporte tres", m.Form().Get(FieldDescripcionActividades))
}

func TestDeleteFollowUpResetsWhenNoneRemain(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoPendiente)
	segID := m.Form().FollowUpID
	require.NotZero(t, segID)

	require.NoError(t, m.DeleteFollowUp(context.Background(), segID))
	form := m.Form()
	assert.Zero(t, form.FollowUpID)
	assert.Equal(t, SeguimientoPendiente, form.Get(FieldSeguimientoEstado))
	assert.Empty(t, form.Get(FieldDescripcionActividades))
	assert.Equal(t, "ACME", form.Get(FieldNombreEntidad))
}

func TestDeleteFollowUpRequiresSelectedPlan(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, adminActor())

	var verr *client.ValidationError
	require.ErrorAs(t, m.DeleteFollowUp(context.Background(), 7), &verr)
	assert.Zero(t, api.callCount(), "nothing should reach the server without an active plan")
}

func TestDeletePlanClearsSelection(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, entidadActor(), EstadoPendiente)

	require.NoError(t, m.DeletePlan(context.Background(), 0))
	assert.Zero(t, m.ActivePlanID())
	assert.Empty(t, m.Plans())
	assert.Empty(t, m.Children())

	form := m.Form()
	assert.Zero(t, form.PlanID)
	assert.Equal(t, "ACME", form.Get(FieldNombreEntidad), "new draft prefills the actor's entity")
	assert.Equal(t, EstadoBorrador, form.Get(FieldEstado))

	// Nothing selected anymore, a second delete has no target.
	err := m.DeletePlan(context.Background(), 0)
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestResetCurrentDiscardsUnsavedEdits(t *testing.T) {
	api := newFakeAPI()
	m := setupSelectedPlan(t, api, adminActor(), EstadoBorrador)

	require.NoError(t, m.UpdateField(FieldAccionMejoraPlanteada, "Edición sin guardar"))
	require.Equal(t, "Edición sin guardar", m.Form().Get(FieldAccionMejoraPlanteada))

	m.ResetCurrent()
	assert.Empty(t, m.Form().Get(FieldAccionMejoraPlanteada))
	assert.Equal(t, "ACME", m.Form().Get(FieldNombreEntidad))

	// Without a selection the reset yields an empty draft.
	m.StartNewDraft()
	require.NoError(t, m.UpdateField(FieldIndicador, "Indicador temporal"))
	m.ResetCurrent()
	assert.Empty(t, m.Form().Get(FieldIndicador))
	assert.Equal(t, EstadoBorrador, m.Form().Get(FieldEstado))
}

func TestCreatePlanFromAction(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, entidadActor())

	created, err := m.CreatePlanFromAction(context.Background(),
		"Repetir la encuesta con mayor cobertura", "Indicador PQRS", "Criterio PQRS")
	require.NoError(t, err)
	assert.Equal(t, created.ID, m.ActivePlanID())
	assert.Equal(t, "ACME", api.lastPlanFields["nombre_entidad"])
	assert.Equal(t, EstadoBorrador, api.lastPlanFields["estado"])
	assert.Equal(t, "Repetir la encuesta con mayor cobertura", api.lastPlanFields["accion_mejora_planteada"])
}

func TestPreviousActionsSharesIndicator(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	api.seedPlan(client.Plan{
		NombreEntidad:         "ACME",
		Estado:                &estado,
		Indicador:             strp("Indicador PQRS"),
		AccionMejoraPlanteada: strp("Primera acción intentada"),
	})
	api.seedPlan(client.Plan{
		NombreEntidad: "ACME",
		Estado:        &estado,
		Indicador:     strp("Otro indicador"),
	})

	m := NewManager(api, entidadActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	m.StartNewDraft()
	require.NoError(t, m.UpdateField(FieldIndicador, "Indicador PQRS"))
	assert.Equal(t, []string{"Primera acción intentada"}, m.PreviousActions())
}

func TestSortPlans(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	for i := 0; i < 3; i++ {
		api.seedPlan(client.Plan{NombreEntidad: fmt.Sprintf("Entidad %d", i), Estado: &estado})
	}

	m := NewManager(api, adminActor())
	require.NoError(t, m.LoadPlans(context.Background()))

	m.SortPlans(true)
	plans := m.Plans()
	assert.Equal(t, uint(3), plans[0].ID)

	m.SortPlans(false)
	plans = m.Plans()
	assert.Equal(t, uint(1), plans[0].ID)
}

func TestLoadAllForExport(t *testing.T) {
	api := newFakeAPI()
	estado := EstadoPendiente
	p1 := api.seedPlan(client.Plan{NombreEntidad: "ACME", Estado: &estado})
	api.seedSeguimiento(p1.ID, client.Seguimiento{})
	api.seedPlan(client.Plan{NombreEntidad: "Otra", Estado: &estado})

	m := NewManager(api, adminActor())
	groups, err := m.LoadAllForExport(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Seguimientos, 1)
	assert.Empty(t, groups[1].Seguimientos)
}
