package fedex

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	dateTypeShip           = "SHIP"
	dateTypeActualDelivery = "ACTUAL_DELIVERY"

	// weight[0] is pounds, weight[1] kilograms.
	weightIndex = 1

	scanTimeLayout = "3:04:05 PM"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode returns the first track result of a FedEx response. A response
// without output.completeTrackResults[0].trackResults[0] is malformed.
func Decode(raw []byte) (*TrackResult, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, errors.Wrap(models.ErrMalformedPayload, err.Error())
		}
	}
	if resp.Output == nil || len(resp.Output.CompleteTrackResults) == 0 {
		return nil, errors.Wrap(models.ErrMalformedPayload, "missing output.completeTrackResults")
	}
	ctr := resp.Output.CompleteTrackResults[0]
	if ctr == nil || len(ctr.TrackResults) == 0 || ctr.TrackResults[0] == nil {
		return nil, errors.Wrap(models.ErrMalformedPayload, "missing trackResults")
	}
	return ctr.TrackResults[0], nil
}

// Normalize maps a raw FedEx response into a tracking draft.
func Normalize(raw []byte, now time.Time) (models.TrackingDraft, error) {
	res, err := Decode(raw)
	if err != nil {
		return models.TrackingDraft{}, err
	}
	return NormalizeResult(res, now)
}

// NormalizeResult maps one track result. Only a missing tracking number is an
// error; every other field falls back to a default.
func NormalizeResult(res *TrackResult, now time.Time) (models.TrackingDraft, error) {
	if res == nil {
		return models.TrackingDraft{}, errors.Wrap(models.ErrMalformedPayload, "nil track result")
	}

	number := res.trackingNumber()
	if number == "" {
		if res.Error != nil && res.Error.Code.Or("") != "" {
			return models.TrackingDraft{}, errors.Wrapf(models.ErrMalformedPayload,
				"carrier error %s: %s", res.Error.Code.Or(""), res.Error.Message.Or(""))
		}
		return models.TrackingDraft{}, errors.Wrap(models.ErrMalformedPayload, "missing trackingNumberInfo.trackingNumber")
	}
	carrierCode := res.carrierCode()
	if carrierCode == "" {
		carrierCode = carrier.Identify(number)
	}

	shipper := addressOf(res.ShipperInformation)
	recipient := addressOf(res.RecipientInformation)

	rec := models.TrackingRecord{
		CarrierCode:           carrierCode,
		TrackingNumber:        number,
		StatusID:              models.DefaultStatusID,
		Route:                 fmt.Sprintf("%s -> %s", shipper.CountryCode.Or(models.Unknown), recipient.CountryCode.Or(models.Unknown)),
		Weight:                parseWeight(res.weightValue(weightIndex)),
		CarrierDeliveryStatus: res.statusDescription().Or(models.Unknown),
		LastUpdate:            now,
		Origin:                formatAddress(shipper),
		Destination:           formatAddress(recipient),
	}

	if len(res.ScanEvents) > 0 {
		if t, ok := parseTime(res.ScanEvents[0].Date); ok {
			rec.LastUpdate = t
		}
	}

	if t, ok := parseTime(res.dateOf(dateTypeShip)); ok {
		rec.ShippingDate = &t
		label := TransitTime(t, now)
		rec.TransitTime = &label
	}

	if t, ok := parseTime(res.windowBegins()); ok {
		rec.DeliveryDate = &t
	} else if t, ok := parseTime(res.dateOf(dateTypeActualDelivery)); ok {
		rec.DeliveryDate = &t
	}

	events := make([]models.ScanHistoryEvent, 0, len(res.ScanEvents))
	for _, e := range res.ScanEvents {
		events = append(events, scanEvent(e, now))
	}

	return models.TrackingDraft{Record: rec, Events: events}, nil
}

func scanEvent(e ScanEvent, now time.Time) models.ScanHistoryEvent {
	at, ok := parseTime(e.Date)
	if !ok {
		at = now
	}
	loc := e.location()
	status := e.EventDescription.Or(models.Unknown)
	return models.ScanHistoryEvent{
		Date:        at,
		Status:      status,
		Time:        at.Format(scanTimeLayout),
		Location:    fmt.Sprintf("%s, %s", loc.City.Or(models.Unknown), loc.CountryCode.Or(models.Unknown)),
		Description: e.ExceptionDescription.Or(status),
	}
}

// TransitTime buckets the time elapsed since shipping into hours, days or weeks.
func TransitTime(shipped, now time.Time) string {
	hours := int(math.Floor(now.Sub(shipped).Hours()))
	switch {
	case hours < 24:
		return fmt.Sprintf("%d hours", hours)
	case hours < 24*7:
		return fmt.Sprintf("%d days", hours/24)
	default:
		return fmt.Sprintf("%d weeks", hours/(24*7))
	}
}

func formatAddress(a Address) string {
	return fmt.Sprintf("%s, %s, %s",
		a.City.Or(models.Unknown),
		a.StateOrProvinceCode.Or(models.Unknown),
		a.CountryName.Or(models.Unknown),
	)
}

func parseWeight(v Text) *decimal.Decimal {
	s := v.Or("")
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseTime(v Text) (time.Time, bool) {
	s := v.Or("")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
