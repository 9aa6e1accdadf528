package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one cart entry sent to checkout. Price is in major currency units.
type LineItem struct {
	ProductID   string          `json:"productId,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
}

// UnitAmount converts Price to minor units, rounding half up.
func (li LineItem) UnitAmount() (int64, error) {
	cents := li.Price.Mul(hundred).Round(0)
	if cents.IsNegative() {
		return 0, fmt.Errorf("item %q: negative price", li.Name)
	}
	return cents.IntPart(), nil
}

func (li LineItem) Validate() error {
	if li.Name == "" {
		return errors.New("item name is required")
	}
	if li.Quantity < 1 {
		return fmt.Errorf("item %q: quantity must be at least 1", li.Name)
	}
	_, err := li.UnitAmount()
	return err
}

type SessionLineItem struct {
	Name        string
	Description string
	Image       string
	SKU         string
	ProductID   string
	UnitAmount  int64
	Quantity    int64
}

// SessionRequest is what the storefront asks the payment gateway to open.
type SessionRequest struct {
	OrderID          string
	Items            []SessionLineItem
	CustomerEmail    string
	Metadata         map[string]string
	SuccessURL       string
	CancelURL        string
	AllowedCountries []string
	CollectPhone     bool
	RequireBilling   bool
}

type CheckoutSession struct {
	ID  string
	URL string
}
