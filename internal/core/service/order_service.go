package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/core/domain"
	"github.com/rl1809/medstore/internal/port"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrGateway         = errors.New("payment gateway error")
)

type OrderService struct {
	orders port.OrderRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(orders port.OrderRepository, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		logger: logger,
		now:    time.Now,
	}
}

type CreateOrderInput struct {
	Email           string
	Items           []domain.LineItem
	ShippingAddress *domain.Address
	BillingAddress  *domain.Address
}

type TrackingResult struct {
	Order    domain.Order           `json:"order"`
	Timeline []domain.TrackingEvent `json:"timeline"`
}

// CreateOrder places a PENDING order ahead of checkout. Guests must supply an email.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput, caller *domain.Identity) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, li := range in.Items {
		if err := li.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: li.ProductID,
			SKU:       li.SKU,
			Name:      li.Name,
			UnitPrice: li.Price,
			Quantity:  int(li.Quantity),
		})
	}

	if err := validateAddress("shipping", in.ShippingAddress); err != nil {
		return nil, err
	}
	billing := in.BillingAddress
	if billing == nil {
		billing = in.ShippingAddress
	} else if err := validateAddress("billing", billing); err != nil {
		return nil, err
	}

	userID, email := "", strings.TrimSpace(in.Email)
	if caller != nil {
		userID = caller.UserID
		if email == "" {
			email = caller.Email
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required for guest orders", ErrValidation)
	}

	order := domain.NewOrder(userID, email, items, in.ShippingAddress, billing, s.now().UTC())
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("item_count", len(order.Items)))
	return &order, nil
}

// GetOrder returns the full order to its owner or a privileged caller.
func (s *OrderService) GetOrder(ctx context.Context, id string, caller *domain.Identity) (*domain.Order, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.OwnedBy(caller.UserID) && !caller.Privileged() {
		s.logger.Warn("order access denied", zap.String("order_id", id), zap.String("user_id", caller.UserID))
		return nil, ErrForbidden
	}
	return order, nil
}

// UpdateOrder applies a manual status or shipment edit. Privileged callers only.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, update domain.OrderUpdate, caller *domain.Identity) (*domain.Order, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.Privileged() {
		return nil, ErrForbidden
	}

	if update.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, *update.PaymentStatus)
	}

	update, err := update.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if update.Status != nil && *update.Status != domain.OrderStatusCancelled && update.PaymentStatus == nil {
		current, err := s.orders.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == domain.PaymentStatusRefunded {
			return nil, fmt.Errorf("%w: %v", ErrValidation, domain.ErrRefundNotCancelled)
		}
	}

	if err := s.orders.UpdateOrder(ctx, id, update, s.now().UTC()); err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Error("failed to update order", zap.String("order_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("order updated by staff", zap.String("order_id", id), zap.String("user_id", caller.UserID))
	return s.orders.GetOrder(ctx, id)
}

// Track is public: it returns the order with personal payment details removed, plus its timeline.
func (s *OrderService) Track(ctx context.Context, orderNumber string) (*TrackingResult, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, fmt.Errorf("%w: order number is required", ErrValidation)
	}

	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	view := *order
	view.UserID = ""
	view.Email = ""
	view.BillingAddress = nil
	view.PaymentID = ""
	view.CheckoutSessionID = ""

	return &TrackingResult{
		Order:    view,
		Timeline: BuildTimeline(*order),
	}, nil
}

func validateAddress(kind string, a *domain.Address) error {
	if a == nil {
		return fmt.Errorf("%w: %s address is required", ErrValidation, kind)
	}
	if a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return fmt.Errorf("%w: %s address is incomplete", ErrValidation, kind)
	}
	return nil
}
