package dto

import "time"

// CreateGrantRequest sets expiry either absolutely (ExpiresAt) or relative to
// now (TTLHours). Neither means the grant lasts until deleted.
type CreateGrantRequest struct {
	UserID    string     `json:"user_id"    validate:"required,uuid"`
	BranchID  string     `json:"branch_id"  validate:"required,min=1,max=64"`
	ExpiresAt *time.Time `json:"expires_at" validate:"omitempty"`
	TTLHours  *int       `json:"ttl_hours"  validate:"omitempty,min=1,max=8760"`
	Notes     *string    `json:"notes"      validate:"omitempty,max=500"`
}

type ListGrantsQuery struct {
	UserID         string `form:"user_id"         validate:"omitempty,uuid"`
	BranchID       string `form:"branch_id"       validate:"omitempty,max=64"`
	IncludeExpired bool   `form:"include_expired"`
}

type GrantResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	BranchID  string     `json:"branch_id"`
	GrantedBy string     `json:"granted_by"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     *string    `json:"notes"`
	Active    bool       `json:"active"`
}
