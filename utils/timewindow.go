package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultGranularity is the step between legal booking start times.
const DefaultGranularity = 15 * time.Minute

// Overlaps is the half-open interval test: touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// CandidateStarts lists the start times inside [slotStart, slotEnd) on the
// granularity grid that leave room for duration and lie strictly after now.
func CandidateStarts(slotStart, slotEnd time.Time, duration, granularity time.Duration, now time.Time) []time.Time {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if duration <= 0 || !slotStart.Before(slotEnd) {
		return nil
	}

	var out []time.Time
	for start := slotStart; !start.Add(duration).After(slotEnd); start = start.Add(granularity) {
		if start.After(now) {
			out = append(out, start)
		}
	}
	return out
}

// IsCandidateStart reports whether start is one of CandidateStarts without
// building the list.
func IsCandidateStart(slotStart, slotEnd, start time.Time, duration, granularity time.Duration, now time.Time) bool {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if duration <= 0 || start.Before(slotStart) || !start.After(now) {
		return false
	}
	if start.Add(duration).After(slotEnd) {
		return false
	}
	return start.Sub(slotStart)%granularity == 0
}

// DurationHours converts a window into hours with two decimal places.
func DurationHours(start, end time.Time) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(end.Sub(start) / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(2)
}

// HoursToDuration is the inverse of DurationHours, truncated to whole minutes.
func HoursToDuration(hours decimal.Decimal) time.Duration {
	minutes := hours.Mul(decimal.NewFromInt(60)).IntPart()
	return time.Duration(minutes) * time.Minute
}

// DayBounds returns the instants a calendar date (YYYY-MM-DD) starts and ends
// in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}

// EndOfDay is accepted by ParseClock as the midnight that closes date.
const EndOfDay = "24:00"

// ParseClock combines a date and an HH:MM wall clock time in loc.
func ParseClock(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == EndOfDay {
		_, end, err := DayBounds(date, loc)
		return end, err
	}
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
}
