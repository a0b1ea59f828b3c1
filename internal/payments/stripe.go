package payments

import (
	"context"
	"math"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/load-matching/internal/models"
)

// StripeProcessor wraps stripe-go PaymentIntent hold/capture/cancel flows
// around confirmed matches.
type StripeProcessor struct {
	currency string
}

// NewStripeProcessor sets the global stripe key and currency.
func NewStripeProcessor(apiKey, currency string) *StripeProcessor {
	stripe.Key = apiKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeProcessor{currency: currency}
}

// Hold creates a PaymentIntent with capture_method=manual for the match's
// agreed price. Returns the PaymentIntent ID.
func (s *StripeProcessor) Hold(ctx context.Context, m *models.Match) (string, error) {
	if m.AgreedPrice == nil || *m.AgreedPrice <= 0 {
		return "", models.Invalidf("match %s has no agreed price to hold", m.ID)
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(*m.AgreedPrice)),
		Currency:      stripe.String(s.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("match_id", m.ID)
	params.AddMetadata("load_id", m.LoadID)
	params.AddMetadata("driver_id", m.DriverID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes the hold after delivery.
func (s *StripeProcessor) Capture(ctx context.Context, m *models.Match) error {
	_, err := paymentintent.Capture(m.PaymentRef, nil)
	return err
}

// Release cancels the hold when a confirmed match is torn down.
func (s *StripeProcessor) Release(ctx context.Context, m *models.Match) error {
	_, err := paymentintent.Cancel(m.PaymentRef, nil)
	return err
}

func toMinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}
