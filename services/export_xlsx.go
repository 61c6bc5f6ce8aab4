package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Wider columns for the fields that carry long free text.
var xlsxColWidths = map[int]float64{
	0:  36, // Nombre entidad
	1:  42, // Enlace entidad
	2:  24, // Estado plan
	3:  28, // Indicador
	4:  28, // Criterio
	5:  24, // Tipo acción
	6:  32, // Acción recomendada
	7:  32, // Acción de mejora
	8:  42, // Desc actividades plan
	9:  42, // Evidencia plan
	12: 28, // Resultado evaluación
	13: 38, // Actividades seguimiento
	14: 32, // Evidencia seguimiento
	15: 32, // Obs DDCS
	16: 28, // Actualizado por
}

// WriteSeguimientosXLSX renders the export table as a single-sheet
// workbook and returns the serialized file.
func WriteSeguimientosXLSX(rows []ExportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Seguimientos"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	for i, col := range ExportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col.Title)
		f.SetCellStyle(sheet, cell, cell, headerStyle)

		name, _ := excelize.ColumnNumberToName(i + 1)
		width := xlsxColWidths[i]
		if width == 0 {
			width = float64(len(col.Title) + 2)
			if width < 14 {
				width = 14
			}
		}
		f.SetColWidth(sheet, name, name, width)
	}

	for r, row := range rows {
		for i, col := range ExportColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			f.SetCellValue(sheet, cell, row[col.Key])
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
