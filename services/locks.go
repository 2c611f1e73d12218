package services

import (
	"context"
	"errors"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCASAttempts = 3

// errStale marks a compare-and-set that matched no row because the version
// moved underneath us. It never leaves this package.
var errStale = errors.New("stale version")

// inTx runs fn in a transaction and re-runs it from a fresh read when a
// version check lost a race.
func inTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, errStale) {
			return err
		}
	}
	return ErrConcurrentUpdate
}

// casUpdate applies updates only if the row still carries version, bumping it.
func casUpdate(tx *gorm.DB, model interface{}, id uuid.UUID, version int64, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStale
	}
	return nil
}

// lockCompanion serializes slot writes for one companion.
func lockCompanion(tx *gorm.DB, companionID uuid.UUID) (*models.Companion, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Companion{UserID: companionID}).Error; err != nil {
		return nil, err
	}

	var companion models.Companion
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&companion, "user_id = ?", companionID).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Companion{}).Where("user_id = ?", companionID).
		Update("version", gorm.Expr("version + 1")).Error; err != nil {
		return nil, err
	}
	return &companion, nil
}

// lockWallet serializes ledger-affecting writes for one user so the balance
// read under it stays valid until commit.
func lockWallet(tx *gorm.DB, userID uuid.UUID) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Wallet{UserID: userID}).Error; err != nil {
		return err
	}

	var wallet models.Wallet
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "user_id = ?", userID).Error; err != nil {
		return err
	}
	return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
		Update("version", gorm.Expr("version + 1")).Error
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &lookupError{what: what}
	}
	return err
}

type lookupError struct{ what string }

func (e *lookupError) Error() string { return e.what + " not found" }

func (e *lookupError) Is(target error) bool { return target == ErrNotFound }
