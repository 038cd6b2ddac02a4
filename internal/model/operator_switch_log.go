package model

import (
	"time"

	"github.com/google/uuid"
)

// OperatorSwitchLog is the audit row written for every successful PIN switch.
type OperatorSwitchLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID     string    `gorm:"type:varchar(64);not null;index:idx_switch_branch_time"`
	SessionID    string    `gorm:"not null"`
	EmployeeID   uuid.UUID `gorm:"type:uuid;not null"`
	EmployeeName string    `gorm:"not null"`
	HomeBranchID string    `gorm:"type:varchar(64);not null"`
	CrossBranch  bool      `gorm:"not null;default:false"`
	SwitchedAt   time.Time `gorm:"not null;index:idx_switch_branch_time"`
}
