package domain

import (
	"slices"
	"time"
)

// Transition is a compare-and-set rule over an order's payment status and status.
// It applies only when the current payment status is in FromPayment and the current
// status is not in Veto. Status moves to To only from statuses listed in StatusFrom;
// any other status is kept as is.
type Transition struct {
	Name        string
	FromPayment []PaymentStatus
	ToPayment   PaymentStatus
	Veto        []OrderStatus
	StatusFrom  []OrderStatus
	To          OrderStatus
	PaymentID   string
}

var (
	// MarkPaid is applied on checkout completion. Repeat deliveries and deliveries
	// for cancelled orders are no-ops.
	MarkPaid = Transition{
		Name:        "mark_paid",
		FromPayment: []PaymentStatus{PaymentStatusPending, PaymentStatusFailed},
		ToPayment:   PaymentStatusPaid,
		Veto:        []OrderStatus{OrderStatusCancelled},
		StatusFrom:  []OrderStatus{OrderStatusPending},
		To:          OrderStatusProcessing,
	}

	// MarkPaymentFailed leaves the order status alone: a failed attempt can still be retried.
	MarkPaymentFailed = Transition{
		Name:        "mark_payment_failed",
		FromPayment: []PaymentStatus{PaymentStatusPending},
		ToPayment:   PaymentStatusFailed,
		Veto:        []OrderStatus{OrderStatusCancelled},
	}

	// MarkRefunded is terminal.
	MarkRefunded = Transition{
		Name:        "mark_refunded",
		FromPayment: []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed},
		ToPayment:   PaymentStatusRefunded,
		StatusFrom: []OrderStatus{
			OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		},
		To: OrderStatusCancelled,
	}
)

func (t Transition) WithPaymentID(paymentID string) Transition {
	t.PaymentID = paymentID
	return t
}

func (t Transition) Allows(o Order) bool {
	return slices.Contains(t.FromPayment, o.PaymentStatus) && !slices.Contains(t.Veto, o.Status)
}

// Apply returns the order after the transition and whether it changed.
func (t Transition) Apply(o Order, now time.Time) (Order, bool) {
	if !t.Allows(o) {
		return o, false
	}

	o.PaymentStatus = t.ToPayment
	if t.To != "" && slices.Contains(t.StatusFrom, o.Status) {
		o.Status = t.To
	}
	if t.PaymentID != "" {
		o.PaymentID = t.PaymentID
	}
	o.UpdatedAt = now
	return o, true
}
