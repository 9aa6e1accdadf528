package port

import (
	"context"
	"time"

	"github.com/rl1809/medstore/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order row with its items and addresses in one transaction
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder loads the full aggregate by id, domain.ErrOrderNotFound if absent
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// GetOrderByNumber loads the full aggregate by its customer-facing number
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// ApplyTransition performs the transition as a single conditional update.
	// Returns false when the order is missing or its current state does not allow it.
	ApplyTransition(ctx context.Context, orderID string, t domain.Transition, now time.Time) (bool, error)

	// UpdateOrder applies an administrative partial update
	UpdateOrder(ctx context.Context, orderID string, update domain.OrderUpdate, now time.Time) error

	// AttachCheckoutSession records the gateway session issued for the order
	AttachCheckoutSession(ctx context.Context, orderID, sessionID string, now time.Time) error

	Ping(ctx context.Context) error
}
