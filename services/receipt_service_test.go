package services

import (
	"strings"
	"testing"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/google/uuid"
)

func TestRenderPayoutReceipt(t *testing.T) {
	ref := "UTR998877"
	payout := models.Payout{
		ID:                uuid.New(),
		RequestedAmount:   dec("1000"),
		PlatformFee:       dec("20"),
		Amount:            dec("980"),
		PaymentMethod:     models.PayoutMethodBank,
		TransferReference: &ref,
	}
	html, err := renderPayoutReceipt(payout, models.User{FullName: "Asha <Rao>"}, testStart)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"1000.00", "20.00", "980.00", ref, "January 10, 2025", "Asha &lt;Rao&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("receipt missing %q", want)
		}
	}
}
