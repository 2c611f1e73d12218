package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type recordingSink struct {
	mu    sync.Mutex
	kinds []Kind
	fail  bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, intent Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, intent.Kind)
	if s.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestDispatcherFansOutToEverySink(t *testing.T) {
	failing := &recordingSink{fail: true}
	healthy := &recordingSink{}
	d := NewDispatcher(8, failing, healthy)

	user := uuid.New()
	d.Enqueue(context.Background(), user, KindBookingConfirmed, map[string]interface{}{"booking_id": "b1"})
	d.Enqueue(context.Background(), user, KindPayoutApproved, nil)
	d.Close()

	for _, sink := range []*recordingSink{failing, healthy} {
		if len(sink.kinds) != 2 || sink.kinds[0] != KindBookingConfirmed || sink.kinds[1] != KindPayoutApproved {
			t.Errorf("sink got %v", sink.kinds)
		}
	}
}
