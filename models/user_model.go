package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleSeeker    Role = "seeker"
	RoleCompanion Role = "companion"
	RoleAdmin     Role = "admin"
)

// VerificationStatus is written by the identity verification collaborator.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
	VerificationRejected VerificationStatus = "rejected"
	VerificationSkipped  VerificationStatus = "skipped"
)

type User struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	FullName           string             `gorm:"size:255;not null" json:"full_name"`
	Email              string             `gorm:"size:255;not null;unique" json:"email"`
	Password           string             `gorm:"not null" json:"-"`
	Role               Role               `gorm:"size:20;not null;default:'seeker'" json:"role"`
	VerificationStatus VerificationStatus `gorm:"size:20;not null;default:'pending'" json:"verification_status"`

	ReferralCode   *string `gorm:"size:10;unique" json:"referral_code"`
	ReferredByCode *string `gorm:"size:10" json:"referred_by_code"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
