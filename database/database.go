package database

import (
	"errors"
	"fmt"

	config "github.com/anjiri1684/companion_booking/configs"
	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB(settings config.Settings) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(settings.DatabaseURL), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	DB = db
	logger.Log.Info("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Companion{},
		&models.Wallet{},
		&models.AvailabilitySlot{},
		&models.Booking{},
		&models.Payment{},
		&models.Payout{},
		&models.WalletTransaction{},
		&models.Referral{},
		&models.Dispute{},
		&models.IdempotencyRecord{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Log.Info("✅ Database migration successful")
	return nil
}

func SeedAdmin(db *gorm.DB, settings config.Settings) error {
	if settings.AdminEmail == "" || settings.AdminPassword == "" {
		logger.Log.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", settings.AdminEmail).First(&existing).Error
	if err == nil {
		logger.Log.Info("Admin user already exists.")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(settings.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	adminUser := models.User{
		FullName:           settings.AdminFullName,
		Email:              settings.AdminEmail,
		Password:           string(hashedPassword),
		Role:               models.RoleAdmin,
		VerificationStatus: models.VerificationSkipped,
		IsActive:           true,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	logger.Log.Info("✅ Admin user seeded successfully")
	return nil
}
