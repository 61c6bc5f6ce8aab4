package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"planes_mejora_go/config"
	"planes_mejora_go/db"
	"planes_mejora_go/models"
	"planes_mejora_go/services"

	"golang.org/x/term"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Crear usuario ===")
	fmt.Println()

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.ToLower(strings.TrimSpace(email))

	fmt.Printf("Rol (%s/%s/%s/%s): ", models.RoleAdmin, models.RoleEntidad, models.RoleAuditor, models.RoleCiudadano)
	role, _ := reader.ReadString('\n')
	role = strings.TrimSpace(role)

	fmt.Print("Entidad: ")
	entidad, _ := reader.ReadString('\n')
	entidad = strings.TrimSpace(entidad)

	// Get password securely
	fmt.Print("Contraseña: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	password := string(passwordBytes)
	fmt.Println()

	if email == "" || password == "" || entidad == "" {
		log.Fatal("Email, entidad y contraseña son obligatorios")
	}
	if !models.IsValidRole(role) {
		log.Fatalf("Rol inválido: %s", role)
	}
	if len(password) < 8 {
		log.Fatal("La contraseña debe tener al menos 8 caracteres")
	}

	var existingUser models.User
	if err := db.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Fatalf("Ya existe un usuario con el email %s", email)
	}

	hashedPassword, err := services.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Email:          email,
		HashedPassword: hashedPassword,
		Role:           role,
		Entidad:        entidad,
	}
	if role == models.RoleEntidad {
		perm := models.PermCapturaReportes
		user.EntidadPerm = &perm
	}

	if err := db.DB.Create(user).Error; err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Println()
	fmt.Println("✓ Usuario creado")
	fmt.Printf("  ID: %d\n", user.ID)
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Rol: %s\n", user.Role)
	fmt.Printf("  Entidad: %s\n", user.Entidad)
}
