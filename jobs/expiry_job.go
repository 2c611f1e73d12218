package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
)

type Sweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpireStaleBookings persists the expiry of unpaid bookings whose payment
// window has lapsed. Reads already treat them as expired; this only keeps
// the stored status in step.
func ExpireStaleBookings(s Sweeper) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := s.ExpireStale(ctx)
		if err != nil {
			logger.Log.Error("Error expiring stale bookings", "error", err)
			return
		}
		if n > 0 {
			logger.Log.Info("Expired stale booking(s)", "count", n)
		}
	}
}
