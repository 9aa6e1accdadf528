package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/core/domain"
	"github.com/rl1809/medstore/internal/port"
)

const guestUserID = "guest"

type CheckoutOptions struct {
	SuccessURL       string
	CancelURL        string
	AllowedCountries []string
}

type CheckoutInput struct {
	OrderID    string
	Items      []domain.LineItem
	SuccessURL string
	CancelURL  string
	Customer   *domain.Identity
}

type CheckoutService struct {
	gateway port.PaymentGateway
	orders  port.OrderRepository
	opts    CheckoutOptions
	logger  *zap.Logger
	now     func() time.Time
}

// NewCheckoutService wires the session initiator. orders may be nil, in which case
// issued session ids are not recorded on the order.
func NewCheckoutService(gateway port.PaymentGateway, orders port.OrderRepository, opts CheckoutOptions, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		gateway: gateway,
		orders:  orders,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateSession validates the cart and opens a hosted checkout session.
// Validation failures wrap ErrValidation and never reach the gateway; gateway
// failures wrap ErrGateway.
func (s *CheckoutService) CreateSession(ctx context.Context, in CheckoutInput) (*domain.CheckoutSession, error) {
	req, err := s.buildSessionRequest(in)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("checkout session creation failed", zap.String("order_id", in.OrderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if s.orders != nil && in.OrderID != "" {
		// The webhook correlates by client reference, so a failure here is not fatal.
		if err := s.orders.AttachCheckoutSession(ctx, in.OrderID, session.ID, s.now().UTC()); err != nil {
			s.logger.Warn("failed to record checkout session on order",
				zap.String("order_id", in.OrderID),
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("checkout session created",
		zap.String("order_id", in.OrderID),
		zap.String("session_id", session.ID),
		zap.Int("item_count", len(req.Items)))
	return session, nil
}

func (s *CheckoutService) buildSessionRequest(in CheckoutInput) (domain.SessionRequest, error) {
	if len(in.Items) == 0 {
		return domain.SessionRequest{}, fmt.Errorf("%w: items must not be empty", ErrValidation)
	}

	items := make([]domain.SessionLineItem, 0, len(in.Items))
	for _, li := range in.Items {
		if err := li.Validate(); err != nil {
			return domain.SessionRequest{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		amount, _ := li.UnitAmount()
		items = append(items, domain.SessionLineItem{
			Name:        li.Name,
			Description: li.Description,
			Image:       li.Image,
			SKU:         li.SKU,
			ProductID:   li.ProductID,
			UnitAmount:  amount,
			Quantity:    li.Quantity,
		})
	}

	userID, email := guestUserID, ""
	if in.Customer != nil {
		if in.Customer.UserID != "" {
			userID = in.Customer.UserID
		}
		email = in.Customer.Email
	}

	metadata := map[string]string{"userId": userID}
	if in.OrderID != "" {
		metadata["orderId"] = in.OrderID
	}

	return domain.SessionRequest{
		OrderID:          in.OrderID,
		Items:            items,
		CustomerEmail:    email,
		Metadata:         metadata,
		SuccessURL:       firstNonEmpty(in.SuccessURL, s.opts.SuccessURL),
		CancelURL:        firstNonEmpty(in.CancelURL, s.opts.CancelURL),
		AllowedCountries: s.opts.AllowedCountries,
		CollectPhone:     true,
		RequireBilling:   true,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
