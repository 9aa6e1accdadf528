package domain

import "time"

type TrackingEvent struct {
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Timestamp      time.Time `json:"timestamp"`
	Carrier        string    `json:"carrier,omitempty"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
}
