package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type AddressKind string

const (
	AddressShipping AddressKind = "SHIPPING"
	AddressBilling  AddressKind = "BILLING"
)

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderItem is a snapshot of the product at the time the order was placed.
type OrderItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	UserID            string          `json:"userId,omitempty"`
	Email             string          `json:"email,omitempty"`
	Items             []OrderItem     `json:"items"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddress   *Address        `json:"shippingAddress,omitempty"`
	BillingAddress    *Address        `json:"billingAddress,omitempty"`
	Carrier           string          `json:"carrier,omitempty"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	CheckoutSessionID string          `json:"checkoutSessionId,omitempty"`
	PaymentID         string          `json:"paymentId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// NewOrder builds a PENDING/PENDING order with fresh identifiers and a computed total.
func NewOrder(userID, email string, items []OrderItem, shipping, billing *Address, now time.Time) Order {
	total := decimal.Zero
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		total = total.Add(items[i].Subtotal())
	}

	return Order{
		ID:              uuid.NewString(),
		OrderNumber:     NewOrderNumber(now),
		UserID:          userID,
		Email:           email,
		Items:           items,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		Total:           total,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewOrderNumber returns a customer-facing number such as MED-20261015-3F2A9C1B.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("MED-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (o Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// OrderUpdate is a partial administrative edit. Nil fields are left untouched.
type OrderUpdate struct {
	Status         *OrderStatus
	PaymentStatus  *PaymentStatus
	TrackingNumber *string
	Carrier        *string
}

func (u OrderUpdate) Empty() bool {
	return u.Status == nil && u.PaymentStatus == nil && u.TrackingNumber == nil && u.Carrier == nil
}

// Normalize makes a REFUNDED payment status carry a CANCELLED status. An update
// asking for a refund together with any other status fails with ErrRefundNotCancelled.
func (u OrderUpdate) Normalize() (OrderUpdate, error) {
	if u.PaymentStatus == nil || *u.PaymentStatus != PaymentStatusRefunded {
		return u, nil
	}
	if u.Status != nil && *u.Status != OrderStatusCancelled {
		return u, ErrRefundNotCancelled
	}
	cancelled := OrderStatusCancelled
	u.Status = &cancelled
	return u, nil
}
