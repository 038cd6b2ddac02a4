package dto

import "time"

type KioskLoginRequest struct {
	BranchID string `json:"branch_id" validate:"required,min=1,max=64"`
	Password string `json:"password"  validate:"required,min=1,max=128"`
}

type KioskSessionResponse struct {
	Token           string    `json:"token"`
	BranchID        string    `json:"branch_id"`
	BranchName      string    `json:"branch_name"`
	SessionID       string    `json:"session_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
