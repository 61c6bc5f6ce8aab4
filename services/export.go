package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"planes_mejora_go/models"
)

// ExportColumn names one column of the seguimiento export table.
type ExportColumn struct {
	Key   string
	Title string
}

// ExportColumns is the fixed column layout shared by the CSV, XLSX and
// PDF exports. Plan fields come first, then the follow-up fields.
var ExportColumns = []ExportColumn{
	{"nombre_entidad", "Nombre entidad"},
	{"enlace_entidad", "Enlace entidad"},
	{"estado", "Estado plan"},
	{"indicador", "Indicador"},
	{"criterio", "Criterio"},
	{"tipo_accion_mejora", "Tipo de acción"},
	{"observacion_informe_calidad", "Acción recomendada (Informe calidad)"},
	{"accion_mejora_planteada", "Acción de mejora planteada"},
	{"plan_descripcion_actividades", "Descripción de actividades (Plan)"},
	{"plan_evidencia_cumplimiento", "Evidencia plan (texto)"},
	{"fecha_inicio", "F. Inicio plan"},
	{"fecha_final", "F. Final plan"},
	{"aprobado_evaluador", "Resultado de la evaluación"},
	{"fecha_reporte", "F. reporte seguimiento"},
	{"seguimiento", "Estado seguimiento"},
	{"descripcion_actividades", "Actividades realizadas"},
	{"evidencia_cumplimiento", "Evidencia (archivo/url)"},
	{"observacion_calidad", "Obs. DDCS"},
	{"updated_by_email", "Actualizado por"},
	{"created_at", "Creado en"},
	{"updated_at", "Actualizado en"},
}

// ExportGroup pairs a plan with its follow-up reports.
type ExportGroup struct {
	Plan         *models.PlanAccion
	Seguimientos []models.Seguimiento
}

// ExportRow is one rendered row keyed by column key.
type ExportRow map[string]string

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func coalesce(a, b *string) string {
	if v := str(a); v != "" {
		return v
	}
	return str(b)
}

// BuildExportRows flattens plan groups into table rows. A plan with no
// follow-ups still produces one row so approved but unreported plans
// stay visible in the export.
func BuildExportRows(groups []ExportGroup) []ExportRow {
	var rows []ExportRow
	for _, g := range groups {
		items := g.Seguimientos
		if len(items) == 0 {
			items = []models.Seguimiento{{}}
		}
		for i := range items {
			s := &items[i]
			row := ExportRow{}
			if g.Plan != nil {
				p := g.Plan
				row["nombre_entidad"] = p.NombreEntidad
				row["enlace_entidad"] = str(p.EnlaceEntidad)
				row["estado"] = p.EstadoOrDefault()
				row["indicador"] = coalesce(p.Indicador, s.Indicador)
				row["criterio"] = str(p.Criterio)
				if row["criterio"] == "" {
					row["criterio"] = s.Criterio
				}
				row["tipo_accion_mejora"] = coalesce(p.TipoAccionMejora, s.TipoAccionMejora)
				row["accion_mejora_planteada"] = coalesce(p.AccionMejoraPlanteada, s.AccionMejoraPlanteada)
				row["plan_descripcion_actividades"] = str(p.DescripcionActividades)
				row["plan_evidencia_cumplimiento"] = str(p.EvidenciaCumplimiento)
				row["fecha_inicio"] = coalesce(p.FechaInicio, s.FechaInicio)
				row["fecha_final"] = coalesce(p.FechaFinal, s.FechaFinal)
				row["aprobado_evaluador"] = str(p.AprobadoEvaluador)
			} else {
				row["indicador"] = str(s.Indicador)
				row["criterio"] = s.Criterio
				row["tipo_accion_mejora"] = str(s.TipoAccionMejora)
				row["accion_mejora_planteada"] = str(s.AccionMejoraPlanteada)
				row["fecha_inicio"] = str(s.FechaInicio)
				row["fecha_final"] = str(s.FechaFinal)
			}
			row["observacion_informe_calidad"] = str(s.ObservacionInformeCalidad)
			row["fecha_reporte"] = str(s.FechaReporte)
			row["seguimiento"] = s.EstadoOrDefault()
			row["descripcion_actividades"] = str(s.DescripcionActividades)
			row["evidencia_cumplimiento"] = str(s.EvidenciaCumplimiento)
			row["observacion_calidad"] = str(s.ObservacionCalidad)
			// Quality observations and tracking status recorded at plan
			// level still show when the report carries none of its own.
			if g.Plan != nil {
				if row["observacion_calidad"] == "" {
					row["observacion_calidad"] = str(g.Plan.ObservacionCalidad)
				}
				if (s.Estado == nil || *s.Estado == "") && str(g.Plan.Seguimiento) != "" {
					row["seguimiento"] = str(g.Plan.Seguimiento)
				}
			}
			row["updated_by_email"] = s.UpdatedByEmail
			if !s.CreatedAt.IsZero() {
				row["created_at"] = s.CreatedAt.Format(time.RFC3339)
			}
			if !s.UpdatedAt.IsZero() {
				row["updated_at"] = s.UpdatedAt.Format(time.RFC3339)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// BuildExportTitle names an export after its single plan, or generically
// when several plans are included.
func BuildExportTitle(groups []ExportGroup) string {
	if len(groups) == 1 && groups[0].Plan != nil {
		p := groups[0].Plan
		return fmt.Sprintf("Plan %d — %s", p.ID, p.NombreEntidad)
	}
	return "Seguimientos"
}

// WriteSeguimientosCSV writes the export as UTF-8 CSV with a BOM so
// Excel opens the accented Spanish headers correctly.
func WriteSeguimientosCSV(w io.Writer, rows []ExportRow) error {
	if _, err := w.Write([]byte("\uFEFF")); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	headers := make([]string, len(ExportColumns))
	for i, col := range ExportColumns {
		headers[i] = col.Title
	}
	if err := cw.Write(headers); err != nil {
		return err
	}

	record := make([]string, len(ExportColumns))
	for _, row := range rows {
		for i, col := range ExportColumns {
			// Newlines inside cells break naive CSV consumers downstream
			v := strings.ReplaceAll(row[col.Key], "\r\n", " ")
			v = strings.ReplaceAll(v, "\n", " ")
			record[i] = strings.TrimSpace(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
