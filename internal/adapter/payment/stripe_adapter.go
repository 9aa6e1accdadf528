package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/rl1809/medstore/internal/core/domain"
)

const metadataOrderID = "orderId"

type StripeAdapter struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripeAdapter(secretKey, webhookSecret, currency string) *StripeAdapter {
	return &StripeAdapter{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

func (s *StripeAdapter) CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.CheckoutSession, error) {
	params := sessionParams(req, s.currency)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}

	return &domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func sessionParams(req domain.SessionRequest, currency string) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Description != "" {
			product.Description = stripe.String(it.Description)
		}
		if it.Image != "" {
			product.Images = stripe.StringSlice([]string{it.Image})
		}
		if it.SKU != "" || it.ProductID != "" {
			product.Metadata = map[string]string{"sku": it.SKU, "productId": it.ProductID}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(it.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:                lineItems,
		Metadata:                 req.Metadata,
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.RequireBilling {
		params.BillingAddressCollection = stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired))
	}
	if req.OrderID != "" {
		params.ClientReferenceID = stripe.String(req.OrderID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.SuccessURL != "" {
		params.SuccessURL = stripe.String(req.SuccessURL)
	}
	if req.CancelURL != "" {
		params.CancelURL = stripe.String(req.CancelURL)
	}
	if len(req.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		}
	}
	if req.CollectPhone {
		params.PhoneNumberCollection = &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		}
	}

	return params
}

// ParseWebhook checks the Stripe-Signature header against the exact payload bytes
// before anything in the body is trusted.
func (s *StripeAdapter) ParseWebhook(payload []byte, signature string) (domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (domain.PaymentEvent, error) {
	meta := domain.EventMeta{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		orderID := sess.ClientReferenceID
		if orderID == "" {
			orderID = sess.Metadata[metadataOrderID]
		}
		var paymentID string
		if sess.PaymentIntent != nil {
			paymentID = sess.PaymentIntent.ID
		}
		return domain.CheckoutCompleted{EventMeta: meta, OrderID: orderID, SessionID: sess.ID, PaymentID: paymentID}, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		return domain.PaymentFailed{EventMeta: meta, OrderID: pi.Metadata[metadataOrderID], PaymentID: pi.ID}, nil

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		orderID := ch.Metadata[metadataOrderID]
		if orderID == "" && ch.PaymentIntent != nil {
			orderID = ch.PaymentIntent.Metadata[metadataOrderID]
		}
		return domain.ChargeRefunded{EventMeta: meta, OrderID: orderID, ChargeID: ch.ID}, nil

	default:
		return domain.IgnoredEvent{EventMeta: meta}, nil
	}
}
