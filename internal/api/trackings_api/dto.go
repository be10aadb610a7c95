package trackings_api

import (
	"time"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/shopspring/decimal"
)

type submitRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	CheckDuplicate *bool  `json:"checkDuplicate"`
}

type batchRequest struct {
	TrackingNumbers []string `json:"trackingNumbers"`
	CheckDuplicate  *bool    `json:"checkDuplicate"`
}

type batchResponse struct {
	BatchID string `json:"batchId"`
	Count   int    `json:"count"`
}

type updateStatusRequest struct {
	StatusID uint64 `json:"statusId"`
}

type createStatusRequest struct {
	Name string `json:"name"`
}

type submitResponse struct {
	Success  bool          `json:"success"`
	Tracking *trackingJSON `json:"tracking"`
}

type duplicateResponse struct {
	Error         string       `json:"error"`
	IsDuplicate   bool         `json:"isDuplicate"`
	ExistingEntry *summaryJSON `json:"existingEntry"`
}

type checkDuplicateResponse struct {
	Exists   bool         `json:"exists"`
	Tracking *summaryJSON `json:"tracking,omitempty"`
}

type listResponse struct {
	Data       []*trackingJSON `json:"data"`
	Pagination paginationJSON  `json:"pagination"`
}

type paginationJSON struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalCount  int  `json:"totalCount"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type trackingJSON struct {
	ID                    uint64           `json:"id"`
	KasID                 string           `json:"kasId"`
	Courier               string           `json:"courier"`
	TrackingNumber        string           `json:"trackingNumber"`
	StatusID              uint64           `json:"statusId"`
	Status                *statusJSON      `json:"status,omitempty"`
	Route                 string           `json:"route"`
	Weight                *decimal.Decimal `json:"weight"`
	ShippingDate          *time.Time       `json:"shippingDate"`
	DeliveryDate          *time.Time       `json:"deliveryDate"`
	CarrierDeliveryStatus string           `json:"carrierDeliveryStatus"`
	LastUpdate            time.Time        `json:"lastUpdate"`
	TransitTime           *string          `json:"transitTime"`
	Origin                string           `json:"origin"`
	Destination           string           `json:"destination"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
	History               []historyJSON    `json:"history,omitempty"`
	Images                []imageJSON      `json:"images,omitempty"`
}

type summaryJSON struct {
	ID                    uint64    `json:"id"`
	KasID                 string    `json:"kasId"`
	TrackingNumber        string    `json:"trackingNumber"`
	CreatedAt             time.Time `json:"createdAt"`
	StatusID              uint64    `json:"statusId"`
	CarrierDeliveryStatus string    `json:"carrierDeliveryStatus"`
}

type historyJSON struct {
	ID          uint64    `json:"id"`
	TrackingID  uint64    `json:"trackingId"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

type imageJSON struct {
	ID         uint64    `json:"id"`
	Key        string    `json:"key"`
	URL        string    `json:"url,omitempty"`
	TrackingID *uint64   `json:"trackingId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type statusJSON struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toTracking(t *models.TrackingRecord) *trackingJSON {
	if t == nil {
		return nil
	}
	out := &trackingJSON{
		ID:                    t.ID,
		KasID:                 t.KasID,
		Courier:               t.CarrierCode,
		TrackingNumber:        t.TrackingNumber,
		StatusID:              t.StatusID,
		Status:                toStatus(t.Status),
		Route:                 t.Route,
		Weight:                t.Weight,
		ShippingDate:          t.ShippingDate,
		DeliveryDate:          t.DeliveryDate,
		CarrierDeliveryStatus: t.CarrierDeliveryStatus,
		LastUpdate:            t.LastUpdate,
		TransitTime:           t.TransitTime,
		Origin:                t.Origin,
		Destination:           t.Destination,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
	for _, e := range t.History {
		out.History = append(out.History, toHistory(e))
	}
	for _, img := range t.Images {
		out.Images = append(out.Images, *toImage(img))
	}
	return out
}

func toSummary(s *models.TrackingSummary) *summaryJSON {
	if s == nil {
		return nil
	}
	return &summaryJSON{
		ID:                    s.ID,
		KasID:                 s.KasID,
		TrackingNumber:        s.TrackingNumber,
		CreatedAt:             s.CreatedAt,
		StatusID:              s.StatusID,
		CarrierDeliveryStatus: s.CarrierDeliveryStatus,
	}
}

func toHistory(e *models.ScanHistoryEvent) historyJSON {
	return historyJSON{
		ID:          e.ID,
		TrackingID:  e.TrackingID,
		Date:        e.Date,
		Status:      e.Status,
		Time:        e.Time,
		Location:    e.Location,
		Description: e.Description,
	}
}

func toImage(img *models.Image) *imageJSON {
	return &imageJSON{
		ID:         img.ID,
		Key:        img.ObjectKey,
		URL:        img.URL,
		TrackingID: img.TrackingID,
		CreatedAt:  img.CreatedAt,
	}
}

func toStatus(s *models.Status) *statusJSON {
	if s == nil {
		return nil
	}
	return &statusJSON{ID: s.ID, Name: s.Name, Description: s.Description}
}
