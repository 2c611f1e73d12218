package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/robfig/cron/v3"
)

const (
	ReminderLead  = 60 * time.Minute
	ReminderEvery = 5 * time.Minute
)

type Reminder interface {
	RemindUpcoming(ctx context.Context, lead, every time.Duration) (int, error)
}

func SendMeetupReminders(r Reminder) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := r.RemindUpcoming(ctx, ReminderLead, ReminderEvery)
		if err != nil {
			logger.Log.Error("Error checking for upcoming meetups", "error", err)
			return
		}
		if n > 0 {
			logger.Log.Info("Sent meetup reminder(s)", "count", n)
		}
	}
}

type Bookings interface {
	Sweeper
	Reminder
}

// Schedule registers the booking jobs on c. The sweeper is optional since
// expiry is evaluated lazily on every read.
func Schedule(c *cron.Cron, bookings Bookings, enableSweeper bool) error {
	if enableSweeper {
		if _, err := c.AddFunc("* * * * *", ExpireStaleBookings(bookings)); err != nil {
			return err
		}
	}
	_, err := c.AddFunc("*/5 * * * *", SendMeetupReminders(bookings))
	return err
}

// Stop halts the scheduler and blocks until jobs already running return, so
// nothing they use can be torn down underneath them.
func Stop(c *cron.Cron) {
	<-c.Stop().Done()
}
