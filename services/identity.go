package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentityVerifier answers whether a user has cleared the external KYC flow.
type IdentityVerifier interface {
	Status(ctx context.Context, userID uuid.UUID) (models.VerificationStatus, error)
}

// StoredIdentity reads the status the KYC collaborator writes onto the user row.
type StoredIdentity struct {
	db *gorm.DB
}

func NewStoredIdentity(db *gorm.DB) *StoredIdentity {
	return &StoredIdentity{db: db}
}

func (s *StoredIdentity) Status(ctx context.Context, userID uuid.UUID) (models.VerificationStatus, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "verification_status").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return user.VerificationStatus, nil
}

func requireVerified(ctx context.Context, verifier IdentityVerifier, opts Options, userID uuid.UUID) error {
	if !opts.RequireVerifiedIdentity || verifier == nil {
		return nil
	}
	status, err := verifier.Status(ctx, userID)
	if err != nil {
		return err
	}
	switch status {
	case models.VerificationVerified, models.VerificationSkipped:
		return nil
	}
	return fmt.Errorf("verification status %q: %w", status, ErrIdentityNotVerified)
}
