package notifications

import (
	"context"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/google/uuid"
)

type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingAccepted  Kind = "booking_accepted"
	KindBookingCancelled Kind = "booking_cancelled"
	KindBookingCompleted Kind = "booking_completed"
	KindBookingFailed    Kind = "booking_failed"
	KindBookingExpired   Kind = "booking_expired"
	KindRefundInitiated  Kind = "refund_initiated"
	KindMeetupReminder   Kind = "meetup_reminder"
	KindDisputeRaised    Kind = "dispute_raised"
	KindDisputeResolved  Kind = "dispute_resolved"
	KindPayoutRequested  Kind = "payout_requested"
	KindPayoutApproved   Kind = "payout_approved"
	KindPayoutRejected   Kind = "payout_rejected"
	KindPayoutCompleted  Kind = "payout_completed"
	KindWalletCredited   Kind = "wallet_credited"
)

// Intent is a notification the core wants delivered. Delivery is best effort.
type Intent struct {
	UserID    uuid.UUID              `json:"user_id"`
	Kind      Kind                   `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// Emitter accepts intents without blocking the caller. Implementations must
// not report delivery failures back into a committed transition.
type Emitter interface {
	Enqueue(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]interface{})
}

// Sink delivers one intent. Sinks run on the dispatcher goroutine.
type Sink interface {
	Deliver(ctx context.Context, intent Intent) error
	Name() string
}

// Dispatcher buffers intents and fans them out to every sink in the
// background. A full buffer drops the intent with a warning.
type Dispatcher struct {
	sinks []Sink
	queue chan Intent
	done  chan struct{}
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan Intent, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Enqueue(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]interface{}) {
	intent := Intent{UserID: userID, Kind: kind, Payload: payload, CreatedAt: time.Now().UTC()}
	select {
	case d.queue <- intent:
	default:
		logger.Log.Warn("notification queue full, dropping intent", "user_id", userID, "kind", kind)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for intent := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := sink.Deliver(ctx, intent); err != nil {
				logger.Log.Error("🔥 notification delivery failed", "sink", sink.Name(), "user_id", intent.UserID, "kind", intent.Kind, "error", err)
			}
			cancel()
		}
	}
}

// Close drains queued intents and stops the dispatcher.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

// LogSink records every intent in the process log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(ctx context.Context, intent Intent) error {
	logger.Log.Info("notification", "user_id", intent.UserID, "kind", intent.Kind, "payload", intent.Payload)
	return nil
}

// Nop discards every intent.
type Nop struct{}

func (Nop) Enqueue(context.Context, uuid.UUID, Kind, map[string]interface{}) {}
