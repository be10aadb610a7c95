package messages

import (
	"encoding/json"
	"time"
)

// Default topic names; each can be overridden in config.
const (
	TopicCarrierPayloads  = "carrier.payloads"
	TopicTrackingIngested = "tracking.ingested"
	TopicSubmit           = "tracking.submit"
	TopicOutcomes         = "tracking.outcomes"
)

// TrackingIngested is published after a record and its history are committed.
type TrackingIngested struct {
	TrackingID            uint64    `json:"tracking_id"`
	KasID                 string    `json:"kas_id"`
	TrackingNumber        string    `json:"tracking_number"`
	CarrierCode           string    `json:"carrier_code"`
	CarrierDeliveryStatus string    `json:"carrier_delivery_status"`
	Events                int       `json:"events"`
	IngestedAt            time.Time `json:"ingested_at"`
}

// CarrierPayload carries a raw carrier response pushed by a webhook relay.
type CarrierPayload struct {
	Source     string          `json:"source,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// SubmitBatch asks the intake worker to submit several tracking numbers.
type SubmitBatch struct {
	BatchID         string    `json:"batch_id"`
	TrackingNumbers []string  `json:"tracking_numbers"`
	CheckDuplicate  *bool     `json:"check_duplicate,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}

const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// SubmitOutcome reports what happened to one number of a SubmitBatch.
type SubmitOutcome struct {
	BatchID        string    `json:"batch_id"`
	TrackingNumber string    `json:"tracking_number"`
	Outcome        string    `json:"outcome"`
	TrackingID     uint64    `json:"tracking_id,omitempty"`
	KasID          string    `json:"kas_id,omitempty"`
	Error          *string   `json:"error,omitempty"`
	ProcessedAt    time.Time `json:"processed_at"`
}
