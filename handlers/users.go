package handlers

import (
	"net/http"
	"strings"

	"planes_mejora_go/db"
	"planes_mejora_go/middleware"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// UserCreatePayload is the admin user-creation request.
type UserCreatePayload struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           string  `json:"role"`
	Entidad        string  `json:"entidad"`
	EntidadPerm    *string `json:"entidad_perm"`
	EntidadAuditor bool    `json:"entidad_auditor"`
}

func userOut(u *models.User) map[string]any {
	return map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"role":            u.Role,
		"entidad":         u.Entidad,
		"entidad_perm":    u.EntidadPerm,
		"entidad_auditor": u.EntidadAuditor,
	}
}

func findUser(c echo.Context) (*models.User, error) {
	var u models.User
	if err := db.DB.First(&u, "id = ?", c.Param("id")).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Usuario no encontrado")
	}
	return &u, nil
}

func countAdmins() int64 {
	var n int64
	db.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n)
	return n
}

// ListUsersHandler returns all users for the admin console, GET /users
func ListUsersHandler(c echo.Context) error {
	var users []models.User
	if err := db.DB.Order("id ASC").Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al consultar usuarios")
	}
	out := make([]map[string]any, 0, len(users))
	for i := range users {
		out = append(out, userOut(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateUserHandler registers a new account, POST /users
func CreateUserHandler(c echo.Context) error {
	var payload UserCreatePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "El campo 'email' es obligatorio")
	}
	if len(payload.Password) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Password too short (min 8)")
	}
	if !models.IsValidRole(payload.Role) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Rol inválido")
	}
	entidad := strings.TrimSpace(payload.Entidad)
	if entidad == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "El campo 'entidad' es obligatorio")
	}

	var existing models.User
	if err := db.DB.First(&existing, "email = ?", email).Error; err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already exists")
	}

	hashed, err := services.HashPassword(payload.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al crear el usuario")
	}

	// Entity-level permissions only make sense for entidad accounts
	var perm *string
	auditor := false
	if payload.Role == models.RoleEntidad {
		perm = payload.EntidadPerm
		auditor = payload.EntidadAuditor
	}

	u := models.User{
		Email:          email,
		HashedPassword: hashed,
		Role:           payload.Role,
		Entidad:        entidad,
		EntidadPerm:    perm,
		EntidadAuditor: auditor,
	}
	if err := db.DB.Create(&u).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already exists")
	}
	return c.JSON(http.StatusCreated, userOut(&u))
}

// UpdateUserRoleHandler changes an account's role, PATCH /users/:id/role
func UpdateUserRoleHandler(c echo.Context) error {
	actor := middleware.GetCurrentUser(c)

	var payload struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&payload); err != nil || !models.IsValidRole(payload.Role) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Rol inválido")
	}

	u, err := findUser(c)
	if err != nil {
		return err
	}

	if actor != nil && u.ID == actor.ID && payload.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot remove your own admin access")
	}
	if u.Role == models.RoleAdmin && payload.Role != models.RoleAdmin && countAdmins() <= 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot demote the last admin")
	}

	u.Role = payload.Role
	if payload.Role != models.RoleEntidad {
		u.EntidadPerm = nil
		u.EntidadAuditor = false
	} else if u.EntidadPerm == nil {
		perm := models.PermCapturaReportes
		u.EntidadPerm = &perm
	}

	if err := db.DB.Save(u).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al actualizar el usuario")
	}
	return c.JSON(http.StatusOK, userOut(u))
}

// UpdateUserPermHandler sets the entidad permission, PATCH /users/:id/perm
func UpdateUserPermHandler(c echo.Context) error {
	var payload struct {
		EntidadPerm *string `json:"entidad_perm"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
	}

	u, err := findUser(c)
	if err != nil {
		return err
	}
	if u.Role != models.RoleEntidad {
		return echo.NewHTTPError(http.StatusBadRequest, "Solo aplica para usuarios con rol 'entidad'")
	}

	u.EntidadPerm = payload.EntidadPerm
	if err := db.DB.Save(u).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al actualizar el usuario")
	}
	return c.JSON(http.StatusOK, userOut(u))
}

// UpdateUserAuditorHandler toggles the auditor flag, PATCH /users/:id/auditor
func UpdateUserAuditorHandler(c echo.Context) error {
	var payload struct {
		EntidadAuditor bool `json:"entidad_auditor"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
	}

	u, err := findUser(c)
	if err != nil {
		return err
	}
	if u.Role != models.RoleEntidad {
		return echo.NewHTTPError(http.StatusBadRequest, "Solo aplica para usuarios con rol 'entidad'")
	}

	u.EntidadAuditor = payload.EntidadAuditor
	if err := db.DB.Save(u).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al actualizar el usuario")
	}
	return c.JSON(http.StatusOK, userOut(u))
}

// ResetUserPasswordHandler sets a new password, PATCH /users/:id/password
func ResetUserPasswordHandler(c echo.Context) error {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos")
	}
	if len(payload.NewPassword) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Password too short (min 8)")
	}

	u, err := findUser(c)
	if err != nil {
		return err
	}

	hashed, err := services.HashPassword(payload.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al actualizar la contraseña")
	}
	u.HashedPassword = hashed
	if err := db.DB.Save(u).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al actualizar la contraseña")
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUserHandler removes an account, DELETE /users/:id
func DeleteUserHandler(c echo.Context) error {
	actor := middleware.GetCurrentUser(c)

	u, err := findUser(c)
	if err != nil {
		return err
	}

	if actor != nil && actor.ID == u.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot delete your own account")
	}
	if u.Role == models.RoleAdmin && countAdmins() <= 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot delete the last admin")
	}

	// Unlink the user's authorship before deleting so plan history survives
	db.DB.Model(&models.PlanAccion{}).Where("created_by = ?", u.ID).Update("created_by", nil)
	db.DB.Model(&models.Seguimiento{}).Where("updated_by_id = ?", u.ID).Update("updated_by_id", nil)

	if err := db.DB.Delete(u).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No se pudo eliminar porque existen referencias activas a este usuario")
	}
	return c.NoContent(http.StatusNoContent)
}
