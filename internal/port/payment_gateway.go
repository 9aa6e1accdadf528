package port

import (
	"context"

	"github.com/rl1809/medstore/internal/core/domain"
)

type PaymentGateway interface {
	// CreateCheckoutSession opens a hosted checkout session
	CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.CheckoutSession, error)

	// ParseWebhook verifies the signature over the raw payload and decodes the event.
	// It returns domain.ErrInvalidSignature when verification fails.
	ParseWebhook(payload []byte, signature string) (domain.PaymentEvent, error)
}
