package dto

import "time"

// Switch outcome values.
const (
	SwitchStatusSwitched = "switched"
	SwitchStatusLocked   = "locked"
	SwitchStatusInvalid  = "invalid"
)

// SwitchOperatorRequest carries the PIN as typed; its format is checked by the
// service so malformed input maps to invalid_credential_format.
type SwitchOperatorRequest struct {
	PIN string `json:"pin"`
}

type OperatorResponse struct {
	EmployeeID   string `json:"employee_id"`
	FullName     string `json:"full_name"`
	Position     string `json:"position,omitempty"`
	HomeBranchID string `json:"home_branch_id"`
	CrossBranch  bool   `json:"cross_branch"`
}

type SwitchOperatorResponse struct {
	Status                  string            `json:"status"`
	Locked                  bool              `json:"locked"`
	Operator                *OperatorResponse `json:"operator,omitempty"`
	AttemptsRemaining       *int              `json:"attempts_remaining,omitempty"`
	LockoutRemainingSeconds *int              `json:"lockout_remaining_seconds,omitempty"`
	SwitchedAt              *time.Time        `json:"switched_at,omitempty"`
	Warning                 string            `json:"warning,omitempty"`
}

type AssignPINsRequest struct {
	// BranchID limits the batch to one branch; nil assigns across all branches.
	BranchID  *string `json:"branch_id" validate:"omitempty,min=1,max=64"`
	Overwrite bool    `json:"overwrite"`
}

type AssignedPIN struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	BranchID   string `json:"branch_id"`
	PIN        string `json:"pin"`
}

type SkippedPIN struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	BranchID   string `json:"branch_id"`
	Reason     string `json:"reason"`
}

// AssignPINsResponse holds plaintext PINs; they cannot be retrieved again.
type AssignPINsResponse struct {
	Assigned []AssignedPIN `json:"assigned"`
	Skipped  []SkippedPIN  `json:"skipped"`
}

type SwitchLogResponse struct {
	ID           string    `json:"id"`
	BranchID     string    `json:"branch_id"`
	SessionID    string    `json:"session_id"`
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	HomeBranchID string    `json:"home_branch_id"`
	CrossBranch  bool      `json:"cross_branch"`
	SwitchedAt   time.Time `json:"switched_at"`
}
