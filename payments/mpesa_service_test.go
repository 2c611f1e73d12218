package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSanitizeMpesaNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{"0712345678", "254712345678", false},
		{"0112345678", "254112345678", false},
		{"712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"254712345678", "254712345678", false},
		{"12345", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := SanitizeMpesaNumber(tc.in)
		if tc.err {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Fatalf("SanitizeMpesaNumber(%q) err = %v, want ErrInvalidPhone", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("SanitizeMpesaNumber(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

type stubGateway struct{ calls int }

func (s *stubGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	s.calls++
	return &Intent{IntentID: req.Provider + "-" + req.BookingRef}, nil
}

func TestRouterDispatchesByProvider(t *testing.T) {
	paypal, mpesa := &stubGateway{}, &stubGateway{}
	r := NewRouter(ProviderPayPal)
	r.Register(ProviderPayPal, paypal)
	r.Register(ProviderMpesa, mpesa)

	intent, err := r.CreateIntent(context.Background(), IntentRequest{Amount: decimal.NewFromInt(10), BookingRef: "b1"})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.IntentID != "paypal-b1" || paypal.calls != 1 {
		t.Fatalf("fallback provider not used: %+v", intent)
	}

	if _, err := r.CreateIntent(context.Background(), IntentRequest{Provider: ProviderMpesa, BookingRef: "b2"}); err != nil {
		t.Fatalf("CreateIntent mpesa: %v", err)
	}
	if mpesa.calls != 1 {
		t.Fatalf("mpesa gateway calls = %d, want 1", mpesa.calls)
	}

	_, err = r.CreateIntent(context.Background(), IntentRequest{Provider: "cash"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("unknown provider err = %v", err)
	}
}
