package service

import (
	"slices"
	"time"

	"github.com/rl1809/medstore/internal/core/domain"
)

// Offsets are display placeholders, not measured shipment times.
const (
	processingOffset = 2 * time.Hour
	shippedOffset    = 24 * time.Hour
	deliveredOffset  = 72 * time.Hour

	defaultLocation = "Fulfillment Center"
	notAvailable    = "N/A"
)

// BuildTimeline derives a customer-facing history from the order's status and
// timestamps, most recent first. It is never a source of truth for status.
func BuildTimeline(o domain.Order) []domain.TrackingEvent {
	events := []domain.TrackingEvent{{
		Status:      "ORDERED",
		Description: "Order placed",
		Location:    "Online",
		Timestamp:   o.CreatedAt,
	}}

	if o.Status == domain.OrderStatusCancelled {
		events = append(events, domain.TrackingEvent{
			Status:      "CANCELLED",
			Description: "Order cancelled",
			Location:    "Online",
			Timestamp:   o.UpdatedAt,
		})
		return sortTimeline(events)
	}

	location := defaultLocation
	if o.ShippingAddress != nil && o.ShippingAddress.City != "" {
		location = o.ShippingAddress.City
	}

	if o.Status != domain.OrderStatusPending {
		events = append(events, domain.TrackingEvent{
			Status:      "PROCESSING",
			Description: "Order is being prepared",
			Location:    location,
			Timestamp:   o.CreatedAt.Add(processingOffset),
		})
	}

	if o.Status == domain.OrderStatusShipped || o.Status == domain.OrderStatusDelivered {
		events = append(events, domain.TrackingEvent{
			Status:         "SHIPPED",
			Description:    "Package handed to carrier",
			Location:       defaultLocation,
			Timestamp:      o.CreatedAt.Add(shippedOffset),
			Carrier:        orNA(o.Carrier),
			TrackingNumber: orNA(o.TrackingNumber),
		})
	}

	if o.Status == domain.OrderStatusDelivered {
		events = append(events, domain.TrackingEvent{
			Status:      "DELIVERED",
			Description: "Package delivered",
			Location:    location,
			Timestamp:   o.CreatedAt.Add(deliveredOffset),
		})
	}

	return sortTimeline(events)
}

func sortTimeline(events []domain.TrackingEvent) []domain.TrackingEvent {
	slices.SortStableFunc(events, func(a, b domain.TrackingEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return events
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
