package identity

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is an account that can sign in to the API.
type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	FullName       *string   `json:"full_name,omitempty"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// SeedUser is a plaintext account definition used by the seed command.
type SeedUser struct {
	Username string
	FullName string
	Role     string
	Password string
}

// DemoUsers are the accounts created by "seed users" on a fresh install.
func DemoUsers() []SeedUser {
	return []SeedUser{
		{Username: "admin", FullName: "System Admin", Role: "admin", Password: "admin123"},
		{Username: "clinician1", FullName: "Dr. Nina Santos", Role: "clinician", Password: "demo123"},
		{Username: "simulator", FullName: "Simulator Service", Role: "admin", Password: "simulator123"},
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token is the login response body.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}
