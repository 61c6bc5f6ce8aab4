package models

// Reporte is one row of the indicator/criterion/action catalog used to
// auto-fill new plans for an entity.
type Reporte struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	Entidad   string  `gorm:"type:text;not null" json:"entidad"`
	Indicador string  `gorm:"type:text;not null" json:"indicador"`
	Criterio  string  `gorm:"type:text;not null" json:"criterio"`
	Accion    string  `gorm:"type:text;not null" json:"accion"`
	Insumo    *string `gorm:"type:text" json:"insumo,omitempty"`
}

// TableName specifies the table name for Reporte model
func (Reporte) TableName() string {
	return "reportes"
}
