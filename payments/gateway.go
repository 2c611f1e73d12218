package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ProviderPayPal = "paypal"
	ProviderMpesa  = "mpesa"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

type IntentRequest struct {
	Amount     decimal.Decimal
	Currency   string
	BookingRef string
	Provider   string
	PayerPhone string
}

// Intent is what the client needs to finish checkout. IntentID is the
// provider's order or checkout id and comes back on confirmation.
type Intent struct {
	IntentID      string `json:"intent_id"`
	ClientSession string `json:"client_session,omitempty"`
}

// PaymentIntentGateway opens a payment with an external provider.
// Confirmation arrives asynchronously through a webhook or capture call.
type PaymentIntentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// Router dispatches to the gateway registered for req.Provider.
type Router struct {
	gateways map[string]PaymentIntentGateway
	fallback string
}

func NewRouter(fallback string) *Router {
	return &Router{gateways: map[string]PaymentIntentGateway{}, fallback: fallback}
}

func (r *Router) Register(provider string, gw PaymentIntentGateway) {
	r.gateways[provider] = gw
}

func (r *Router) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	provider := req.Provider
	if provider == "" {
		provider = r.fallback
	}
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}
	req.Provider = provider
	return gw.CreateIntent(ctx, req)
}
