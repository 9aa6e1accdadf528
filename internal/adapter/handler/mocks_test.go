package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rl1809/medstore/internal/adapter/payment"
	"github.com/rl1809/medstore/internal/core/domain"
)

const testWebhookSecret = "whsec_handler_test"

// Mock OrderRepository
type memRepo struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	err     error
	pingErr error
}

func newMemRepo(orders ...domain.Order) *memRepo {
	m := &memRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memRepo) ApplyTransition(ctx context.Context, orderID string, t domain.Transition, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	next, changed := t.Apply(o, now)
	m.orders[orderID] = next
	return changed, nil
}

func (m *memRepo) UpdateOrder(ctx context.Context, orderID string, u domain.OrderUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.TrackingNumber != nil {
		o.TrackingNumber = *u.TrackingNumber
	}
	if u.Carrier != nil {
		o.Carrier = *u.Carrier
	}
	o.UpdatedAt = now
	m.orders[orderID] = o
	return nil
}

func (m *memRepo) AttachCheckoutSession(ctx context.Context, orderID, sessionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.CheckoutSessionID = sessionID
	m.orders[orderID] = o
	return nil
}

func (m *memRepo) Ping(ctx context.Context) error { return m.pingErr }

func (m *memRepo) get(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// fakeGateway opens canned sessions and verifies webhooks with the real Stripe adapter.
type fakeGateway struct {
	*payment.StripeAdapter
	mu    sync.Mutex
	calls int
	last  domain.SessionRequest
	err   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{StripeAdapter: payment.NewStripeAdapter("sk_test_unused", testWebhookSecret, "usd")}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &domain.CheckoutSession{ID: "cs_test_handler", URL: "https://checkout.stripe.com/c/pay/cs_test_handler"}, nil
}

type stubLimiter struct {
	allow bool
	retry time.Duration
	err   error
}

func (s stubLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return s.allow, s.retry, s.err
}

var errStorage = errors.New("connection reset")
