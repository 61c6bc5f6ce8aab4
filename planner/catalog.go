package planner

import (
	"context"
	"log"

	"planes_mejora_go/client"
)

func strp(s string) *string { return &s }

// FallbackCatalog is used when the entity has no indicator catalog or
// the fetch fails, so the form always has something to offer.
var FallbackCatalog = []client.CatalogEntry{
	{
		Indicador: strp("Indicador de satisfacción"),
		Criterio:  strp("Porcentaje de usuarios satisfechos"),
		Accion:    strp("Realizar encuesta trimestral a los usuarios"),
		Insumo:    strp("Dimensión de satisfacción del usuario"),
	},
	{
		Indicador: strp("Tiempo de respuesta a PQRS"),
		Criterio:  strp("Promedio de días para responder PQRS"),
		Accion:    strp("Implementar tablero de monitoreo diario"),
		Insumo:    strp("Dimensión de PQRS"),
	},
}

// LoadCatalog fetches the indicator catalog for the actor's entity.
// Returns the fallback rows, flagged as such, when the catalog is
// missing or unreachable. Fallback rows are options only, never
// auto-imported into the draft.
func (m *Manager) LoadCatalog(ctx context.Context) (entries []client.CatalogEntry, fallback bool) {
	cat, err := m.api.GetCatalog(ctx, m.actor.Entidad)
	if err != nil {
		log.Printf("[WARNING] Could not load catalog for %q, using fallback: %v", m.actor.Entidad, err)
		return FallbackCatalog, true
	}
	if len(cat.Indicadores) == 0 {
		return FallbackCatalog, true
	}
	return cat.Indicadores, false
}

// ImportCatalogEntry pre-fills blank plan fields from a catalog row.
// Existing draft values are never overwritten.
func (m *Manager) ImportCatalogEntry(entry client.CatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	setIfBlank := func(key string, value *string) {
		if value == nil || *value == "" {
			return
		}
		if m.form.Blank(key) {
			m.form.Set(key, *value)
		}
	}

	setIfBlank(FieldIndicador, entry.Indicador)
	if entry.Criterio != nil && *entry.Criterio != "" {
		setIfBlank(FieldCriterio, entry.Criterio)
	} else {
		// A catalog row without a criterion reuses the indicator text
		setIfBlank(FieldCriterio, entry.Indicador)
	}
	setIfBlank(FieldAccionMejoraPlanteada, entry.Accion)
	setIfBlank(FieldInsumoMejora, entry.Insumo)
}
