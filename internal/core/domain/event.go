package domain

// PaymentEvent is a verified notification from the payment gateway. The set of
// implementations is closed; consumers switch over the concrete types.
type PaymentEvent interface {
	EventID() string
	Kind() string
	isPaymentEvent()
}

type EventMeta struct {
	ID   string
	Type string
}

func (m EventMeta) EventID() string { return m.ID }
func (m EventMeta) Kind() string    { return m.Type }

// CheckoutCompleted is emitted when a hosted checkout session finishes successfully.
type CheckoutCompleted struct {
	EventMeta
	OrderID   string
	SessionID string
	PaymentID string
}

type PaymentFailed struct {
	EventMeta
	OrderID   string
	PaymentID string
}

type ChargeRefunded struct {
	EventMeta
	OrderID  string
	ChargeID string
}

// IgnoredEvent is any event kind the storefront does not act on.
type IgnoredEvent struct {
	EventMeta
}

func (CheckoutCompleted) isPaymentEvent() {}
func (PaymentFailed) isPaymentEvent()     {}
func (ChargeRefunded) isPaymentEvent()    {}
func (IgnoredEvent) isPaymentEvent()      {}
