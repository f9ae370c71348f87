package model

import (
	"time"

	"github.com/google/uuid"
)

type Match struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientA   string     `gorm:"size:64;index;not null"`
	ClientB   string     `gorm:"size:64;index;not null"`
	StartedAt time.Time  `gorm:"not null;index"`
	EndedAt   *time.Time `gorm:"index"`
	EndReason string     `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
