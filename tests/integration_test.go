package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/adapter/payment"
	"github.com/rl1809/medstore/internal/adapter/storage"
	"github.com/rl1809/medstore/internal/core/domain"
	"github.com/rl1809/medstore/internal/core/service"
)

const webhookSecret = "whsec_integration"

type testEnv struct {
	redis      *redis.Client
	mysql      *sql.DB
	cache      *storage.RedisAdapter
	db         *storage.MySQLAdapter
	orders     *service.OrderService
	reconciler *service.WebhookReconciler
	cleanup    func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/medstore?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	require.NoError(t, storage.Migrate(context.Background(), db))

	logger := zap.NewNop()
	cache := storage.NewRedisAdapter(rdb)
	store := storage.NewMySQLAdapter(db)
	gateway := payment.NewStripeAdapter("sk_test_unused", webhookSecret, "usd")

	return &testEnv{
		redis:      rdb,
		mysql:      db,
		cache:      cache,
		db:         store,
		orders:     service.NewOrderService(store, logger),
		reconciler: service.NewWebhookReconciler(gateway, store, cache, logger),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (e *testEnv) placeOrder(t *testing.T, ctx context.Context) *domain.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(ctx, service.CreateOrderInput{
		Items: []domain.LineItem{
			{SKU: "HB-1", Name: "Hospital bed", Price: decimal.RequireFromString("1299.00"), Quantity: 1},
			{SKU: "MT-2", Name: "Pressure mattress", Price: decimal.RequireFromString("349.50"), Quantity: 1},
		},
		ShippingAddress: &domain.Address{Line1: "12 Oak Ave", City: "Portland", PostalCode: "97201", Country: "US"},
	}, &domain.Identity{UserID: "integration-user", Email: "it@example.com", Role: domain.RoleCustomer})
	require.NoError(t, err)
	return order
}

func signed(eventID, eventType, object string) ([]byte, string) {
	body := fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, eventID, eventType, object)
	p := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return p.Payload, p.Header
}

func TestIntegration_CheckoutLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	order := env.placeOrder(t, ctx)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("1648.50")))

	completedID := "evt_" + uuid.NewString()
	payload, header := signed(completedID, "checkout.session.completed",
		fmt.Sprintf(`{"id":"cs_it","client_reference_id":%q,"payment_intent":"pi_it"}`, order.ID))

	outcome, err := env.reconciler.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, outcome)

	// same delivery again is caught by the Redis marker
	outcome, err = env.reconciler.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeDuplicate, outcome)

	got, err := env.db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)
	assert.Equal(t, "pi_it", got.PaymentID)

	tracked, err := env.orders.Track(ctx, order.OrderNumber)
	require.NoError(t, err)
	require.Len(t, tracked.Timeline, 2)
	assert.Equal(t, "PROCESSING", tracked.Timeline[0].Status)

	refundPayload, refundHeader := signed("evt_"+uuid.NewString(), "charge.refunded",
		fmt.Sprintf(`{"id":"ch_it","metadata":{"orderId":%q}}`, order.ID))
	outcome, err = env.reconciler.Handle(ctx, refundPayload, refundHeader)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, outcome)

	got, err = env.db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
}

func TestIntegration_ConcurrentOutOfOrderWebhooks(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	order := env.placeOrder(t, ctx)

	var deliveries [][2]string
	for i := 0; i < 5; i++ {
		p, h := signed("evt_"+uuid.NewString(), "checkout.session.completed",
			fmt.Sprintf(`{"id":"cs_it","client_reference_id":%q}`, order.ID))
		deliveries = append(deliveries, [2]string{string(p), h})

		p, h = signed("evt_"+uuid.NewString(), "payment_intent.payment_failed",
			fmt.Sprintf(`{"id":"pi_it","metadata":{"orderId":%q}}`, order.ID))
		deliveries = append(deliveries, [2]string{string(p), h})
	}
	p, h := signed("evt_"+uuid.NewString(), "charge.refunded",
		fmt.Sprintf(`{"id":"ch_it","metadata":{"orderId":%q}}`, order.ID))
	deliveries = append(deliveries, [2]string{string(p), h})

	var wg sync.WaitGroup
	for _, d := range deliveries {
		wg.Add(1)
		go func(payload, header string) {
			defer wg.Done()
			_, err := env.reconciler.Handle(ctx, []byte(payload), header)
			assert.NoError(t, err)
		}(d[0], d[1])
	}
	wg.Wait()

	got, err := env.db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
}

func TestIntegration_ForgedWebhookIsRejected(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	order := env.placeOrder(t, ctx)

	body := fmt.Sprintf(`{"id":"evt_forged","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_x","client_reference_id":%q}}}`, order.ID)
	_, err := env.reconciler.Handle(ctx, []byte(body), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	got, err := env.db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
}
