package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AccountService struct {
	db      *gorm.DB
	credits *CreditService
}

func NewAccountService(db *gorm.DB, credits *CreditService) *AccountService {
	return &AccountService{db: db, credits: credits}
}

type RegisterInput struct {
	FullName       string
	Email          string
	Password       string
	Role           models.Role
	ReferredByCode string
	City           string
	Area           string
	Headline       string
}

// Register creates a seeker or companion account. An unknown referral code is
// logged and ignored rather than failing the signup.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleSeeker
	}
	if in.Role != models.RoleSeeker && in.Role != models.RoleCompanion {
		return nil, fmt.Errorf("role %q: %w", in.Role, ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrEmailTaken
		}

		code, err := utils.GenerateUniqueReferralCode(tx)
		if err != nil {
			return err
		}

		user = models.User{
			FullName:           in.FullName,
			Email:              email,
			Password:           string(hashedPassword),
			Role:               in.Role,
			VerificationStatus: models.VerificationPending,
			ReferralCode:       &code,
			IsActive:           true,
		}
		if in.ReferredByCode != "" {
			user.ReferredByCode = &in.ReferredByCode
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}

		if in.Role == models.RoleCompanion {
			companion := models.Companion{UserID: user.ID, City: in.City, Area: in.Area}
			if in.Headline != "" {
				companion.Headline = &in.Headline
			}
			if err := tx.Create(&companion).Error; err != nil {
				return err
			}
		}

		if in.ReferredByCode != "" && s.credits != nil {
			if err := s.credits.RegisterReferral(tx, user.ID, in.ReferredByCode); err != nil {
				if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidInput) {
					return err
				}
				logger.Log.Warn("Invalid referral code used", "code", in.ReferredByCode)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// SetVerificationStatus is the hook the KYC collaborator calls back into.
func (s *AccountService) SetVerificationStatus(ctx context.Context, userID string, status models.VerificationStatus) error {
	switch status {
	case models.VerificationVerified, models.VerificationPending, models.VerificationRejected, models.VerificationSkipped:
	default:
		return fmt.Errorf("verification status %q: %w", status, ErrInvalidInput)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("verification_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
