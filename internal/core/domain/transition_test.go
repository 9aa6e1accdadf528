package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		transition  Transition
		payment     PaymentStatus
		status      OrderStatus
		wantChanged bool
		wantPayment PaymentStatus
		wantStatus  OrderStatus
	}{
		{"paid from pending", MarkPaid, PaymentStatusPending, OrderStatusPending, true, PaymentStatusPaid, OrderStatusProcessing},
		{"paid after failed attempt", MarkPaid, PaymentStatusFailed, OrderStatusPending, true, PaymentStatusPaid, OrderStatusProcessing},
		{"paid keeps manual shipped status", MarkPaid, PaymentStatusPending, OrderStatusShipped, true, PaymentStatusPaid, OrderStatusShipped},
		{"paid twice", MarkPaid, PaymentStatusPaid, OrderStatusProcessing, false, PaymentStatusPaid, OrderStatusProcessing},
		{"paid on cancelled", MarkPaid, PaymentStatusPending, OrderStatusCancelled, false, PaymentStatusPending, OrderStatusCancelled},
		{"paid after refund", MarkPaid, PaymentStatusRefunded, OrderStatusCancelled, false, PaymentStatusRefunded, OrderStatusCancelled},

		{"failed from pending", MarkPaymentFailed, PaymentStatusPending, OrderStatusPending, true, PaymentStatusFailed, OrderStatusPending},
		{"failed after paid", MarkPaymentFailed, PaymentStatusPaid, OrderStatusProcessing, false, PaymentStatusPaid, OrderStatusProcessing},
		{"failed on cancelled", MarkPaymentFailed, PaymentStatusPending, OrderStatusCancelled, false, PaymentStatusPending, OrderStatusCancelled},

		{"refund paid", MarkRefunded, PaymentStatusPaid, OrderStatusProcessing, true, PaymentStatusRefunded, OrderStatusCancelled},
		{"refund delivered", MarkRefunded, PaymentStatusPaid, OrderStatusDelivered, true, PaymentStatusRefunded, OrderStatusCancelled},
		{"refund before completion", MarkRefunded, PaymentStatusPending, OrderStatusPending, true, PaymentStatusRefunded, OrderStatusCancelled},
		{"refund twice", MarkRefunded, PaymentStatusRefunded, OrderStatusCancelled, false, PaymentStatusRefunded, OrderStatusCancelled},
		{"refund manually cancelled", MarkRefunded, PaymentStatusPaid, OrderStatusCancelled, true, PaymentStatusRefunded, OrderStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{ID: "o1", PaymentStatus: tt.payment, Status: tt.status}

			got, changed := tt.transition.Apply(o, now)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantPayment, got.PaymentStatus)
			assert.Equal(t, tt.wantStatus, got.Status)
			if changed {
				assert.Equal(t, now, got.UpdatedAt)
			} else {
				assert.Equal(t, o, got)
			}
		})
	}
}

func TestTransitionWithPaymentID(t *testing.T) {
	o := Order{PaymentStatus: PaymentStatusPending, Status: OrderStatusPending}

	got, changed := MarkPaid.WithPaymentID("pi_123").Apply(o, time.Now())

	assert.True(t, changed)
	assert.Equal(t, "pi_123", got.PaymentID)
	assert.Empty(t, MarkPaid.PaymentID, "package-level transition must not be mutated")
}
