package model

import "time"

// Branch IDs are slugs ("yunusabad"). KioskPasswordHash guards terminal login.
type Branch struct {
	ID                string `gorm:"type:varchar(64);primaryKey"`
	Name              string `gorm:"not null"`
	KioskPasswordHash string `gorm:"not null;default:''"`
	Active            bool   `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
