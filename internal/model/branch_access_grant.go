package model

import (
	"time"

	"github.com/google/uuid"
)

// BranchAccessGrant extends a user's branch scope. A nil ExpiresAt never expires.
type BranchAccessGrant struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_grant_user_branch"`
	BranchID  string     `gorm:"type:varchar(64);not null;index:idx_grant_user_branch"`
	GrantedBy uuid.UUID  `gorm:"type:uuid;not null"`
	GrantedAt time.Time  `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	Notes     *string
}

// ActiveAt reports whether the grant is in force at t.
func (g BranchAccessGrant) ActiveAt(t time.Time) bool {
	return g.ExpiresAt == nil || t.Before(*g.ExpiresAt)
}
