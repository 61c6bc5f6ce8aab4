package models

import "time"

// User role constants
const (
	RoleAdmin     = "admin"
	RoleEntidad   = "entidad"
	RoleAuditor   = "auditor"
	RoleCiudadano = "ciudadano"
)

// Entidad permission constants (what an entidad account may do)
const (
	PermCapturaReportes     = "captura_reportes"
	PermReportesSeguimiento = "reportes_seguimiento"
)

// User represents an application account. Entidad users belong to exactly one
// government entity; the Entidad field carries its display name and scopes
// every plan query they issue.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email          string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	HashedPassword string `gorm:"size:255;not null" json:"-"`
	Role           string `gorm:"size:20;not null;default:entidad" json:"role"`

	// Entidad-specific attributes
	EntidadPerm    *string `gorm:"size:32" json:"entidad_perm,omitempty"`
	EntidadAuditor bool    `gorm:"not null;default:false" json:"entidad_auditor"`
	Entidad        string  `gorm:"not null" json:"entidad"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// IsValidRole reports whether role is one of the known account roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEntidad, RoleAuditor, RoleCiudadano:
		return true
	}
	return false
}

// HasAuditorAccess reports whether the user may act as an evaluator: either a
// dedicated auditor/admin account or an entidad account flagged as auditor.
func (u *User) HasAuditorAccess() bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin || u.Role == RoleAuditor {
		return true
	}
	return u.Role == RoleEntidad && u.EntidadAuditor
}
