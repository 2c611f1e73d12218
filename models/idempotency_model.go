package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord remembers which resource a client key produced so that a
// retried command returns the original result.
type IdempotencyRecord struct {
	Scope       string    `gorm:"size:50;primary_key"`
	Key         string    `gorm:"column:idempotency_key;size:255;primary_key"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null"`
	RequestHash string    `gorm:"size:64;not null"`
	ResourceID  uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}
