package fedex

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Response mirrors the FedEx Track API response. Every field is optional:
// shipment types differ in what they report, and a missing leaf must never
// stop a record from being ingested.
type Response struct {
	TransactionID Text    `json:"transactionId"`
	Output        *Output `json:"output"`
}

type Output struct {
	CompleteTrackResults List[*CompleteTrackResult] `json:"completeTrackResults"`
}

type CompleteTrackResult struct {
	TrackingNumber Text               `json:"trackingNumber"`
	TrackResults   List[*TrackResult] `json:"trackResults"`
}

type TrackResult struct {
	TrackingNumberInfo          *TrackingNumberInfo `json:"trackingNumberInfo"`
	LatestStatusDetail          *StatusDetail       `json:"latestStatusDetail"`
	ShipperInformation          *Party              `json:"shipperInformation"`
	RecipientInformation        *Party              `json:"recipientInformation"`
	PackageDetails              *PackageDetails     `json:"packageDetails"`
	DateAndTimes                List[DateAndTime]   `json:"dateAndTimes"`
	EstimatedDeliveryTimeWindow *TimeWindow         `json:"estimatedDeliveryTimeWindow"`
	ScanEvents                  List[ScanEvent]     `json:"scanEvents"`
	Error                       *ResultError        `json:"error,omitempty"`
}

type TrackingNumberInfo struct {
	TrackingNumber         Text `json:"trackingNumber"`
	CarrierCode            Text `json:"carrierCode"`
	TrackingNumberUniqueID Text `json:"trackingNumberUniqueId"`
}

type StatusDetail struct {
	Code           Text `json:"code"`
	DerivedCode    Text `json:"derivedCode"`
	StatusByLocale Text `json:"statusByLocale"`
	Description    Text `json:"description"`
}

type Party struct {
	Address *Address `json:"address"`
}

type Address struct {
	City                Text `json:"city"`
	StateOrProvinceCode Text `json:"stateOrProvinceCode"`
	CountryCode         Text `json:"countryCode"`
	CountryName         Text `json:"countryName"`
}

type PackageDetails struct {
	WeightAndDimensions *WeightAndDimensions `json:"weightAndDimensions"`
}

type WeightAndDimensions struct {
	Weight List[Weight] `json:"weight"`
}

type Weight struct {
	Unit  Text `json:"unit"`
	Value Text `json:"value"`
}

type DateAndTime struct {
	Type     Text `json:"type"`
	DateTime Text `json:"dateTime"`
}

type TimeWindow struct {
	Window *Window `json:"window"`
}

type Window struct {
	Begins Text `json:"begins"`
	Ends   Text `json:"ends"`
}

type ScanEvent struct {
	Date                 Text     `json:"date"`
	EventType            Text     `json:"eventType"`
	EventDescription     Text     `json:"eventDescription"`
	ExceptionCode        Text     `json:"exceptionCode"`
	ExceptionDescription Text     `json:"exceptionDescription"`
	DerivedStatus        Text     `json:"derivedStatus"`
	ScanLocation         *Address `json:"scanLocation"`
}

type ResultError struct {
	Code    Text `json:"code"`
	Message Text `json:"message"`
}

// Text accepts any JSON scalar. Objects and arrays decode to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if json.Unmarshal(b, &s) != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case b[0] == '{', b[0] == '[':
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

// Or returns the trimmed value, or def when it is empty.
func (t Text) Or(def string) string {
	if s := strings.TrimSpace(string(t)); s != "" {
		return s
	}
	return def
}

// List decodes a JSON array element by element. A value that is not an
// array decodes to an empty list; an element of the wrong shape decodes to
// its zero value.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if json.Unmarshal(b, &raw) != nil {
		*l = nil
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		_ = json.Unmarshal(r, &v)
		out = append(out, v)
	}
	*l = out
	return nil
}

func (r *TrackResult) trackingNumber() string {
	if r.TrackingNumberInfo == nil {
		return ""
	}
	return r.TrackingNumberInfo.TrackingNumber.Or("")
}

func (r *TrackResult) carrierCode() string {
	if r.TrackingNumberInfo == nil {
		return ""
	}
	return r.TrackingNumberInfo.CarrierCode.Or("")
}

func (r *TrackResult) statusDescription() Text {
	if r.LatestStatusDetail == nil {
		return ""
	}
	return r.LatestStatusDetail.Description
}

func (r *TrackResult) weightValue(idx int) Text {
	if r.PackageDetails == nil || r.PackageDetails.WeightAndDimensions == nil {
		return ""
	}
	ws := r.PackageDetails.WeightAndDimensions.Weight
	if idx < 0 || idx >= len(ws) {
		return ""
	}
	return ws[idx].Value
}

func (r *TrackResult) dateOf(typ string) Text {
	for _, dt := range r.DateAndTimes {
		if string(dt.Type) == typ {
			return dt.DateTime
		}
	}
	return ""
}

func (r *TrackResult) windowBegins() Text {
	if r.EstimatedDeliveryTimeWindow == nil || r.EstimatedDeliveryTimeWindow.Window == nil {
		return ""
	}
	return r.EstimatedDeliveryTimeWindow.Window.Begins
}

func addressOf(p *Party) Address {
	if p == nil || p.Address == nil {
		return Address{}
	}
	return *p.Address
}

func (e ScanEvent) location() Address {
	if e.ScanLocation == nil {
		return Address{}
	}
	return *e.ScanLocation
}
