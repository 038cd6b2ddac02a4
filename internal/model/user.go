package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a personal login. Role holds an rbac.Role tag; BranchID is the home
// branch, nil for staff who are not tied to one.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string     `gorm:"uniqueIndex;not null"`
	Name         string     `gorm:"not null"`
	PasswordHash string     `gorm:"not null"`
	Role         string     `gorm:"type:varchar(32);not null"`
	EmployeeID   *uuid.UUID `gorm:"type:uuid;index"`
	BranchID     *string    `gorm:"type:varchar(64);index"`
	Active       bool       `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
