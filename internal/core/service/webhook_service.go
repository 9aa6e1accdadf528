package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/core/domain"
	"github.com/rl1809/medstore/internal/port"
)

const (
	webhookKeyPrefix = "webhook:"
	releaseTimeout   = 2 * time.Second
)

// Outcome describes how an acknowledged event was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeNoop      Outcome = "noop"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
)

// WebhookReconciler verifies gateway events and applies their transitions to the order store.
type WebhookReconciler struct {
	gateway port.PaymentGateway
	orders  port.OrderRepository
	cache   port.CacheRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewWebhookReconciler builds a reconciler. cache is optional and only
// short-circuits redeliveries; correctness comes from the conditional updates.
func NewWebhookReconciler(gateway port.PaymentGateway, orders port.OrderRepository, cache port.CacheRepository, logger *zap.Logger) *WebhookReconciler {
	return &WebhookReconciler{
		gateway: gateway,
		orders:  orders,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one delivery. A nil error means the delivery must be acknowledged.
func (r *WebhookReconciler) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := r.gateway.ParseWebhook(payload, signature)
	if err != nil {
		r.logger.Warn("rejected webhook", zap.Error(err))
		if errors.Is(err, domain.ErrInvalidSignature) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	key := webhookKeyPrefix + event.EventID()
	claimed := false
	if r.cache != nil && event.EventID() != "" {
		first, err := r.cache.SetIdempotency(ctx, key)
		if err != nil {
			r.logger.Warn("webhook dedupe unavailable", zap.String("event_id", event.EventID()), zap.Error(err))
		} else if !first {
			r.logger.Info("duplicate webhook delivery",
				zap.String("event_id", event.EventID()),
				zap.String("event_type", event.Kind()))
			return OutcomeDuplicate, nil
		} else {
			claimed = true
		}
	}

	outcome, err := r.dispatch(ctx, event)
	if err != nil {
		if claimed {
			r.release(ctx, key, event.EventID())
		}
		return "", err
	}
	return outcome, nil
}

// release drops the delivery marker so the gateway's retry is processed. It must
// run even when the request context is already cancelled.
func (r *WebhookReconciler) release(ctx context.Context, key, eventID string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := r.cache.ReleaseIdempotency(relCtx, key); err != nil {
		r.logger.Error("failed to release webhook key", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (r *WebhookReconciler) dispatch(ctx context.Context, event domain.PaymentEvent) (Outcome, error) {
	switch e := event.(type) {
	case domain.CheckoutCompleted:
		return r.apply(ctx, e, e.OrderID, domain.MarkPaid.WithPaymentID(e.PaymentID))
	case domain.PaymentFailed:
		return r.apply(ctx, e, e.OrderID, domain.MarkPaymentFailed)
	case domain.ChargeRefunded:
		return r.apply(ctx, e, e.OrderID, domain.MarkRefunded)
	case domain.IgnoredEvent:
		r.logger.Debug("ignoring webhook event", zap.String("event_type", e.Kind()), zap.String("event_id", e.EventID()))
		return OutcomeSkipped, nil
	default:
		return "", fmt.Errorf("unhandled payment event %T", event)
	}
}

func (r *WebhookReconciler) apply(ctx context.Context, event domain.PaymentEvent, orderID string, t domain.Transition) (Outcome, error) {
	fields := []zap.Field{
		zap.String("event_type", event.Kind()),
		zap.String("event_id", event.EventID()),
		zap.String("order_id", orderID),
		zap.String("transition", t.Name),
	}

	if orderID == "" {
		r.logger.Info("webhook event has no order reference", fields...)
		return OutcomeSkipped, nil
	}

	applied, err := r.orders.ApplyTransition(ctx, orderID, t, r.now().UTC())
	if err != nil {
		r.logger.Error("failed to apply payment transition", append(fields, zap.Error(err))...)
		return "", fmt.Errorf("apply %s to order %s: %w", t.Name, orderID, err)
	}
	if !applied {
		r.logger.Info("payment transition not applicable", fields...)
		return OutcomeNoop, nil
	}

	r.logger.Info("payment transition applied", fields...)
	return OutcomeApplied, nil
}
