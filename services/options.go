package services

import (
	"time"

	config "github.com/anjiri1684/companion_booking/configs"
	"github.com/shopspring/decimal"
)

// Options carries the platform policy shared by every service.
type Options struct {
	Location                *time.Location
	PlatformFeePercent      decimal.Decimal
	PaymentWindow           time.Duration
	SlotGranularity         time.Duration
	MinBookingDuration      time.Duration
	MinPayoutAmount         decimal.Decimal
	PayoutFeePercent        decimal.Decimal
	PayoutDuplicateWindow   time.Duration
	ReferralRewardAmount    decimal.Decimal
	RequireVerifiedIdentity bool
	Now                     func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Location:                time.UTC,
		PlatformFeePercent:      decimal.NewFromInt(7),
		PaymentWindow:           15 * time.Minute,
		SlotGranularity:         15 * time.Minute,
		MinBookingDuration:      time.Hour,
		MinPayoutAmount:         decimal.NewFromInt(100),
		PayoutFeePercent:        decimal.Zero,
		PayoutDuplicateWindow:   2 * time.Minute,
		ReferralRewardAmount:    decimal.NewFromInt(50),
		RequireVerifiedIdentity: true,
		Now:                     time.Now,
	}
}

func OptionsFromSettings(s config.Settings) Options {
	return Options{
		Location:                s.Location(),
		PlatformFeePercent:      s.PlatformFeePercent,
		PaymentWindow:           s.PaymentWindow,
		SlotGranularity:         s.SlotGranularity,
		MinBookingDuration:      s.MinBookingDuration,
		MinPayoutAmount:         s.MinPayoutAmount,
		PayoutFeePercent:        s.PayoutFeePercent,
		PayoutDuplicateWindow:   s.PayoutDuplicateWindow,
		ReferralRewardAmount:    s.ReferralRewardAmount,
		RequireVerifiedIdentity: s.RequireVerifiedIdentity,
		Now:                     time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}
