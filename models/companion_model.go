package models

import (
	"time"

	"github.com/google/uuid"
)

// Companion is the public profile of a user who publishes slots. The row
// doubles as the serialization point for that companion's slot writes.
type Companion struct {
	UserID            uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	Headline          *string   `gorm:"size:255" json:"headline"`
	Bio               *string   `gorm:"type:text" json:"bio"`
	City              string    `gorm:"size:100;index" json:"city"`
	Area              string    `gorm:"size:100;index" json:"area"`
	CancellationCount int       `gorm:"not null;default:0" json:"cancellation_count"`
	Version           int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// Wallet carries no balance. Ledger-affecting writes lock it so that the
// balance they read stays valid until they commit.
type Wallet struct {
	UserID    uuid.UUID `gorm:"type:uuid;primary_key"`
	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
