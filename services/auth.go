package services

import (
	"fmt"
	"time"

	"planes_mejora_go/config"
	"planes_mejora_go/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword verifies a password against a bcrypt hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenClaims are the JWT claims carried by every access token. Sub is the
// account email; the entidad fields scope what the holder may see.
type TokenClaims struct {
	Role           string  `json:"role"`
	UID            uint    `json:"uid"`
	Entidad        string  `json:"entidad,omitempty"`
	EntidadPerm    *string `json:"entidad_perm,omitempty"`
	EntidadAuditor bool    `json:"entidad_auditor"`
	jwt.RegisteredClaims
}

// CreateAccessToken issues a signed bearer token for the user.
func CreateAccessToken(cfg *config.Config, user *models.User) (string, error) {
	claims := TokenClaims{
		Role:           user.Role,
		UID:            user.ID,
		Entidad:        user.Entidad,
		EntidadPerm:    user.EntidadPerm,
		EntidadAuditor: user.EntidadAuditor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.JWTExpireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func ParseAccessToken(cfg *config.Config, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Authenticate verifies credentials and returns the matching user.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !CheckPassword(password, user.HashedPassword) {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &user, nil
}

// ResolveUser loads the account behind a set of token claims, preferring the
// numeric id and falling back to the email.
func ResolveUser(db *gorm.DB, claims *TokenClaims) (*models.User, error) {
	var user models.User
	if claims.UID != 0 {
		if err := db.First(&user, claims.UID).Error; err == nil {
			return &user, nil
		}
	}
	if err := db.Where("email = ?", claims.Subject).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user not found for token")
	}
	return &user, nil
}
