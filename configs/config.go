package config

import (
	"fmt"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Settings struct {
	DatabaseURL string        `envconfig:"DATABASE_URL" required:"true"`
	Port        string        `envconfig:"PORT" default:"8080"`
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"72h"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminFullName string `envconfig:"ADMIN_FULL_NAME" default:"Platform Admin"`

	PlatformTimezone        string          `envconfig:"PLATFORM_TIMEZONE" default:"Asia/Kolkata"`
	PlatformFeePercent      decimal.Decimal `envconfig:"PLATFORM_FEE_PERCENT" default:"7"`
	PaymentWindow           time.Duration   `envconfig:"PAYMENT_WINDOW" default:"15m"`
	SlotGranularity         time.Duration   `envconfig:"SLOT_GRANULARITY" default:"15m"`
	MinBookingDuration      time.Duration   `envconfig:"MIN_BOOKING_DURATION" default:"1h"`
	MinPayoutAmount         decimal.Decimal `envconfig:"MIN_PAYOUT_AMOUNT" default:"100"`
	PayoutFeePercent        decimal.Decimal `envconfig:"PAYOUT_FEE_PERCENT" default:"0"`
	PayoutDuplicateWindow   time.Duration   `envconfig:"PAYOUT_DUPLICATE_WINDOW" default:"2m"`
	ReferralRewardAmount    decimal.Decimal `envconfig:"REFERRAL_REWARD_AMOUNT" default:"50"`
	RequireVerifiedIdentity bool            `envconfig:"REQUIRE_VERIFIED_IDENTITY" default:"true"`
	EnableSweeper           bool            `envconfig:"ENABLE_SWEEPER" default:"true"`

	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`

	BrevoAPIKey     string `envconfig:"BREVO_API_KEY"`
	EmailSender     string `envconfig:"EMAIL_SENDER"`
	EmailSenderName string `envconfig:"EMAIL_SENDER_NAME"`
	CloudinaryURL   string `envconfig:"CLOUDINARY_URL"`

	PayPalAPIBaseURL   string `envconfig:"PAYPAL_API_BASE_URL"`
	PayPalClientID     string `envconfig:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET"`

	KCBBaseURL         string `envconfig:"KCB_BASE_URL" default:"https://api.buni.kcbgroup.com/mm/api/request/1.0.0"`
	KCBTokenURL        string `envconfig:"KCB_TOKEN_URL" default:"https://api.buni.kcbgroup.com/token?grant_type=client_credentials"`
	KCBAPIKey          string `envconfig:"KCB_API_KEY"`
	KCBAPISecret       string `envconfig:"KCB_API_SECRET"`
	KCBAccountNumber   string `envconfig:"KCB_ACCOUNT_NUMBER"`
	KCBRouteCode       string `envconfig:"KCB_ROUTE_CODE"`
	KCBTransactionDesc string `envconfig:"KCB_TRANSACTION_DESC" default:"Meetup booking"`
	WebhookBaseURL     string `envconfig:"WEBHOOK_BASE_URL"`
}

// Location resolves PlatformTimezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.PlatformTimezone)
	if err != nil {
		logger.Log.Warn("unknown platform timezone, using UTC", "timezone", s.PlatformTimezone, "error", err)
		return time.UTC
	}
	return loc
}

func Load() (Settings, error) {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Warn(".env file not found, reading from system environment variables")
	}

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}
