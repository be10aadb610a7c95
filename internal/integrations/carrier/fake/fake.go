package fake

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"

	"github.com/pkg/errors"
)

// FakeClient stands in for the FedEx Track API in local runs and tests. The
// payload is deterministic per tracking number: roughly one in five numbers
// comes back delivered.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient {
	return &FakeClient{now: func() time.Time { return time.Now().UTC() }}
}

var cities = []struct{ city, state, code, country string }{
	{"MEMPHIS", "TN", "US", "United States"},
	{"TORONTO", "ON", "CA", "Canada"},
	{"HAMBURG", "HH", "DE", "Germany"},
	{"OSAKA", "27", "JP", "Japan"},
	{"LIMA", "LIM", "PE", "Peru"},
}

func (f *FakeClient) Track(_ context.Context, trackingNumber string) ([]byte, error) {
	if trackingNumber == "" {
		return nil, errors.New("empty tracking number")
	}
	now := f.now()

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	from := cities[v%uint32(len(cities))]
	to := cities[(v/7+1)%uint32(len(cities))]
	shipped := now.Add(-time.Duration(12+v%400) * time.Hour)

	status := "In transit"
	dates := []map[string]any{{"type": "SHIP", "dateTime": shipped.Format(time.RFC3339)}}
	events := []map[string]any{
		scan(now.Add(-2*time.Hour), "Departed FedEx hub", from.city, from.code),
		scan(shipped, "Picked up", from.city, from.code),
	}
	if v%5 == 0 {
		status = "Delivered"
		delivered := now.Add(-time.Hour)
		dates = append(dates, map[string]any{"type": "ACTUAL_DELIVERY", "dateTime": delivered.Format(time.RFC3339)})
		events = append([]map[string]any{scan(delivered, "Delivered", to.city, to.code)}, events...)
	}

	kg := float64(1+v%300) / 10
	payload := map[string]any{
		"transactionId": "fake",
		"output": map[string]any{
			"completeTrackResults": []any{map[string]any{
				"trackingNumber": trackingNumber,
				"trackResults": []any{map[string]any{
					"trackingNumberInfo": map[string]any{
						"trackingNumber": trackingNumber,
						"carrierCode":    "FDXE",
					},
					"latestStatusDetail":   map[string]any{"description": status},
					"shipperInformation":   party(from.city, from.state, from.code, from.country),
					"recipientInformation": party(to.city, to.state, to.code, to.country),
					"packageDetails": map[string]any{"weightAndDimensions": map[string]any{"weight": []any{
						map[string]any{"unit": "LB", "value": kg * 2.20462},
						map[string]any{"unit": "KG", "value": kg},
					}}},
					"dateAndTimes": dates,
					"scanEvents":   events,
				}},
			}},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal fake payload")
	}
	return b, nil
}

func party(city, state, code, country string) map[string]any {
	return map[string]any{"address": map[string]any{
		"city":                city,
		"stateOrProvinceCode": state,
		"countryCode":         code,
		"countryName":         country,
	}}
}

func scan(at time.Time, desc, city, code string) map[string]any {
	return map[string]any{
		"date":             at.Format(time.RFC3339),
		"eventDescription": desc,
		"scanLocation":     map[string]any{"city": city, "countryCode": code},
	}
}
