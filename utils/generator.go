package utils

import (
	"errors"
	"math/rand"
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"gorm.io/gorm"
)

const referralCodeLength = 8
const referralCodeAttempts = 20
const letterBytes = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var ErrReferralCodeExhausted = errors.New("could not allocate a unique referral code")

func GenerateUniqueReferralCode(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		b := make([]byte, referralCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := string(b)

		var count int64
		if err := tx.Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrReferralCodeExhausted
}
