package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default value for carrier fields that are missing from the payload.
const Unknown = "Unknown"

// Seeded statuses. Freshly ingested records start as "Received".
const (
	StatusPending   = "Pending"
	StatusInTransit = "In Transit"
	StatusDelivered = "Delivered"
	StatusReceived  = "Received"

	DefaultStatusID uint64 = 4
)

type TrackingRecord struct {
	ID                    uint64
	KasID                 string
	CarrierCode           string
	TrackingNumber        string
	StatusID              uint64
	Route                 string
	Weight                *decimal.Decimal
	ShippingDate          *time.Time
	DeliveryDate          *time.Time
	CarrierDeliveryStatus string
	LastUpdate            time.Time
	TransitTime           *string
	Origin                string
	Destination           string
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Status  *Status             `json:",omitempty"`
	History []*ScanHistoryEvent `json:",omitempty"`
	Images  []*Image            `json:",omitempty"`
}

type ScanHistoryEvent struct {
	ID          uint64
	TrackingID  uint64
	Date        time.Time
	Status      string
	Time        string
	Location    string
	Description string
}

type Image struct {
	ID         uint64
	ObjectKey  string
	TrackingID *uint64
	CreatedAt  time.Time

	// Resolved from ObjectKey when served; never stored.
	URL string `json:",omitempty"`
}

type Status struct {
	ID          uint64
	Name        string
	Description string
}

// TrackingSummary is what the duplicate check reports about an existing record.
type TrackingSummary struct {
	ID                    uint64
	KasID                 string
	TrackingNumber        string
	CreatedAt             time.Time
	StatusID              uint64
	CarrierDeliveryStatus string
}

// TrackingDraft is a normalized carrier result that has not been persisted yet.
type TrackingDraft struct {
	Record TrackingRecord
	Events []ScanHistoryEvent
}

type TrackingFilter struct {
	StatusID *uint64
	Page     int
	Limit    int
}

type TrackingPage struct {
	Items      []*TrackingRecord
	Page       int
	Limit      int
	TotalCount int
}

func (p TrackingPage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.TotalCount + p.Limit - 1) / p.Limit
}

func (p TrackingPage) HasNextPage() bool { return p.Page < p.TotalPages() }

func (p TrackingPage) HasPrevPage() bool { return p.Page > 1 }
