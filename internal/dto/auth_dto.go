package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// RefreshRequest may be empty when the refresh token travels in its cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateUserRequest struct {
	Email      string  `json:"email"       validate:"required,email,max=254"`
	Name       string  `json:"name"        validate:"required,min=2,max=100"`
	Password   string  `json:"password"    validate:"required,min=8,max=128"`
	Role       string  `json:"role"        validate:"required,role"`
	EmployeeID *string `json:"employee_id" validate:"omitempty,uuid"`
	BranchID   *string `json:"branch_id"   validate:"omitempty,min=1,max=64"`
}

type UpdateUserRequest struct {
	Name       string  `json:"name"        validate:"omitempty,min=2,max=100"`
	Role       string  `json:"role"        validate:"omitempty,role"`
	EmployeeID *string `json:"employee_id" validate:"omitempty,uuid"`
	BranchID   *string `json:"branch_id"   validate:"omitempty,min=1,max=64"`
	Password   string  `json:"password"    validate:"omitempty,min=8,max=128"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	EmployeeID *string `json:"employee_id"`
	BranchID   *string `json:"branch_id"`
	Active     bool    `json:"active"`
}

// SessionResponse is returned by login and refresh. The same tokens are also
// set as HttpOnly cookies.
type SessionResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        int          `json:"expires_in"` // seconds
	ExpiresAt        time.Time    `json:"expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	SessionID        string       `json:"session_id"`
	User             UserResponse `json:"user"`
	Permissions      []string     `json:"permissions"`
}

type MeResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	EmployeeID  *string  `json:"employee_id"`
	BranchID    *string  `json:"branch_id"`
	SessionID   string   `json:"session_id"`
	Permissions []string `json:"permissions"`
	AllBranches bool     `json:"all_branches"`
	Branches    []string `json:"branches"`
}

type PermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}
