package model

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a roster entry. PINHash is the bcrypt hash of the operator PIN;
// empty means no PIN has been assigned yet.
type Employee struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName  string    `gorm:"not null"`
	BranchID  string    `gorm:"type:varchar(64);not null;index"`
	Position  string
	PINHash   string `gorm:"column:pin_hash;not null;default:''"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Employee) HasPIN() bool { return e.PINHash != "" }
