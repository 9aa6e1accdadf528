package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rl1809/medstore/internal/core/domain"
)

// Mock OrderRepository
type mockOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	err      error
	sessions map[string]string
	// onApply runs at the start of ApplyTransition, e.g. to drop the client mid-request
	onApply func()
}

func newMockOrderRepo(orders ...domain.Order) *mockOrderRepo {
	m := &mockOrderRepo{
		orders:   make(map[string]domain.Order),
		sessions: make(map[string]string),
	}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *mockOrderRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderRepo) ApplyTransition(ctx context.Context, orderID string, t domain.Transition, now time.Time) (bool, error) {
	if m.onApply != nil {
		m.onApply()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
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

func (m *mockOrderRepo) UpdateOrder(ctx context.Context, orderID string, u domain.OrderUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
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

func (m *mockOrderRepo) AttachCheckoutSession(ctx context.Context, orderID, sessionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.CheckoutSessionID = sessionID
	m.orders[orderID] = o
	m.sessions[orderID] = sessionID
	return nil
}

func (m *mockOrderRepo) Ping(ctx context.Context) error { return nil }

func (m *mockOrderRepo) get(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *mockOrderRepo) snapshot() map[string]domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Order, len(m.orders))
	for k, v := range m.orders {
		out[k] = v
	}
	return out
}

const validSignature = "t=1,v1=valid"

// Mock PaymentGateway
type mockGateway struct {
	mu       sync.Mutex
	calls    int
	last     domain.SessionRequest
	session  *domain.CheckoutSession
	err      error
	events   map[string]domain.PaymentEvent
	parseErr error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		session: &domain.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"},
		events:  make(map[string]domain.PaymentEvent),
	}
}

func (g *mockGateway) CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

func (g *mockGateway) ParseWebhook(payload []byte, signature string) (domain.PaymentEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if signature != validSignature {
		return nil, domain.ErrInvalidSignature
	}
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	e, ok := g.events[string(payload)]
	if !ok {
		return nil, errors.New("unknown payload")
	}
	return e, nil
}

func (g *mockGateway) register(payload string, e domain.PaymentEvent) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[payload] = e
	return []byte(payload)
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	released       []string
	err            error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

func pendingOrder(id string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		OrderNumber:   "MED-20260101-" + id,
		UserID:        "user-1",
		Email:         "buyer@example.com",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
