package store

import "time"

// Save delivery status values.
const (
	SaveStatusPending   = "pending"
	SaveStatusDelivered = "delivered"
	SaveStatusFailed    = "failed"
)

// SaveDelivery is one queued outbound save push: a serialized plan payload
// bound for the backend, with retry bookkeeping.
type SaveDelivery struct {
	ID            string     `json:"id"`
	TripID        string     `json:"tripId"`
	URL           string     `json:"url"`
	Secret        string     `json:"-"`
	Payload       []byte     `json:"-"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"nextAttemptAt"`
	LastError     string     `json:"lastError,omitempty"`
	ResponseCode  int        `json:"responseCode,omitempty"`
	LatencyMs     int        `json:"latencyMs,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
}
