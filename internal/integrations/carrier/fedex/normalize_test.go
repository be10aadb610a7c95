package fedex

import (
	"fmt"
	"testing"
	"time"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

const fullPayload = `{
  "transactionId": "624deea6-b709-470c-8c39-4b5511281492",
  "output": {
    "completeTrackResults": [{
      "trackingNumber": "794843185271",
      "trackResults": [{
        "trackingNumberInfo": {"trackingNumber": "794843185271", "trackingNumberUniqueId": "12029~794843185271~FDEG", "carrierCode": "FDXG"},
        "latestStatusDetail": {"code": "IT", "derivedCode": "IT", "statusByLocale": "In transit", "description": "In transit"},
        "shipperInformation": {"address": {"city": "POST FALLS", "stateOrProvinceCode": "ID", "countryCode": "US", "countryName": "United States"}},
        "recipientInformation": {"address": {"city": "Norton", "stateOrProvinceCode": "VA", "countryCode": "CA", "countryName": "Canada"}},
        "packageDetails": {"weightAndDimensions": {"weight": [{"value": "22222.0", "unit": "LB"}, {"value": "10104.0", "unit": "KG"}]}},
        "dateAndTimes": [
          {"type": "ESTIMATED_DELIVERY", "dateTime": "2025-03-22T00:00:00-06:00"},
          {"type": "SHIP", "dateTime": "2025-03-10T08:00:00-06:00"}
        ],
        "estimatedDeliveryTimeWindow": {"window": {"begins": "2025-03-22T09:00:00-06:00", "ends": "2025-03-22T17:00:00-06:00"}},
        "scanEvents": [
          {"date": "2025-03-18T09:15:00-06:00", "eventType": "DP", "eventDescription": "Departed FedEx location", "exceptionCode": "", "exceptionDescription": "", "scanLocation": {"city": "Memphis", "countryCode": "US"}},
          {"date": "2025-03-17T22:40:00-06:00", "eventType": "DE", "eventDescription": "Delivery exception", "exceptionCode": "08", "exceptionDescription": "Recipient not in", "scanLocation": {"city": "Memphis", "countryCode": "US"}},
          {"date": "2025-03-10T08:00:00-06:00", "eventType": "PU", "eventDescription": "Picked up", "scanLocation": {}}
        ]
      }]
    }]
  }
}`

func TestNormalize_FullPayload(t *testing.T) {
	d, err := Normalize([]byte(fullPayload), testNow)
	require.NoError(t, err)

	r := d.Record
	require.Equal(t, "794843185271", r.TrackingNumber)
	require.Equal(t, "FDXG", r.CarrierCode)
	require.Equal(t, models.DefaultStatusID, r.StatusID)
	require.Equal(t, "In transit", r.CarrierDeliveryStatus)
	require.Equal(t, "US -> CA", r.Route)
	require.NotNil(t, r.Weight)
	require.Equal(t, "10104", r.Weight.String())
	require.Equal(t, "POST FALLS, ID, United States", r.Origin)
	require.Equal(t, "Norton, VA, Canada", r.Destination)

	require.True(t, r.LastUpdate.Equal(time.Date(2025, 3, 18, 15, 15, 0, 0, time.UTC)))
	require.NotNil(t, r.ShippingDate)
	require.True(t, r.ShippingDate.Equal(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)))
	require.NotNil(t, r.DeliveryDate)
	require.True(t, r.DeliveryDate.Equal(time.Date(2025, 3, 22, 15, 0, 0, 0, time.UTC)))
	require.NotNil(t, r.TransitTime)
	require.Equal(t, "1 weeks", *r.TransitTime)

	require.Len(t, d.Events, 3)
	require.Equal(t, "Departed FedEx location", d.Events[0].Status)
	require.Equal(t, "Departed FedEx location", d.Events[0].Description)
	require.Equal(t, "Memphis, US", d.Events[0].Location)
	require.Equal(t, "9:15:00 AM", d.Events[0].Time)

	require.Equal(t, "Delivery exception", d.Events[1].Status)
	require.Equal(t, "Recipient not in", d.Events[1].Description)
	require.Equal(t, "10:40:00 PM", d.Events[1].Time)

	require.Equal(t, "Unknown, Unknown", d.Events[2].Location)
}

func TestNormalize_MalformedPayload(t *testing.T) {
	cases := map[string]string{
		"empty object":          `{}`,
		"no results":            `{"output":{}}`,
		"empty results":         `{"output":{"completeTrackResults":[]}}`,
		"empty track results":   `{"output":{"completeTrackResults":[{"trackResults":[]}]}}`,
		"null track result":     `{"output":{"completeTrackResults":[{"trackResults":[null]}]}}`,
		"null complete result":  `{"output":{"completeTrackResults":[null]}}`,
		"output is a string":    `{"output":"oops"}`,
		"top level array":       `[]`,
		"not json":              `<html>gateway timeout</html>`,
		"missing tracking info": `{"output":{"completeTrackResults":[{"trackResults":[{"latestStatusDetail":{"description":"x"}}]}]}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(raw), testNow)
			require.ErrorIs(t, err, models.ErrMalformedPayload)
		})
	}
}

func TestNormalize_CarrierErrorResult(t *testing.T) {
	raw := `{"output":{"completeTrackResults":[{"trackingNumber":"123","trackResults":[{"trackingNumberInfo":{},"error":{"code":"TRACKING.TRACKINGNUMBER.NOTFOUND","message":"Tracking number cannot be found."}}]}]}}`
	_, err := Normalize([]byte(raw), testNow)
	require.ErrorIs(t, err, models.ErrMalformedPayload)
	require.Contains(t, err.Error(), "TRACKING.TRACKINGNUMBER.NOTFOUND")
}

func TestNormalize_MinimalResultUsesDefaults(t *testing.T) {
	raw := `{"output":{"completeTrackResults":[{"trackResults":[{"trackingNumberInfo":{"trackingNumber":"794843185271"}}]}]}}`
	d, err := Normalize([]byte(raw), testNow)
	require.NoError(t, err)

	r := d.Record
	require.Equal(t, "FEDEX", r.CarrierCode)
	require.Equal(t, models.Unknown, r.CarrierDeliveryStatus)
	require.Equal(t, "Unknown -> Unknown", r.Route)
	require.Nil(t, r.Weight)
	require.Nil(t, r.ShippingDate)
	require.Nil(t, r.DeliveryDate)
	require.Nil(t, r.TransitTime)
	require.Equal(t, "Unknown, Unknown, Unknown", r.Origin)
	require.Equal(t, "Unknown, Unknown, Unknown", r.Destination)
	require.True(t, r.LastUpdate.Equal(testNow))
	require.Empty(t, d.Events)
}

func TestNormalize_Weight(t *testing.T) {
	cases := []struct {
		name   string
		weight string
		want   string
	}{
		{"not a number", `[{"value":"1","unit":"LB"},{"value":"N/A","unit":"KG"}]`, ""},
		{"missing index", `[{"value":"22.0","unit":"LB"}]`, ""},
		{"numeric literal", `[{"value":1,"unit":"LB"},{"value":10.5,"unit":"KG"}]`, "10.5"},
		{"string value", `[{"value":"9.1","unit":"LB"},{"value":" 4.2 ","unit":"KG"}]`, "4.2"},
		{"not a list", `{"value":"4.2"}`, ""},
		{"null entry", `[{"value":"9.1"},null]`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := fmt.Sprintf(`{"output":{"completeTrackResults":[{"trackResults":[{
				"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
				"packageDetails":{"weightAndDimensions":{"weight":%s}}}]}]}}`, tc.weight)
			d, err := Normalize([]byte(raw), testNow)
			require.NoError(t, err)
			if tc.want == "" {
				require.Nil(t, d.Record.Weight)
				return
			}
			require.NotNil(t, d.Record.Weight)
			require.Equal(t, tc.want, d.Record.Weight.String())
		})
	}
}

func TestTransitTime_Boundaries(t *testing.T) {
	require.Equal(t, "0 hours", TransitTime(testNow, testNow))
	require.Equal(t, "23 hours", TransitTime(testNow.Add(-(23*time.Hour+59*time.Minute)), testNow))
	require.Equal(t, "1 days", TransitTime(testNow.Add(-24*time.Hour), testNow))
	require.Equal(t, "6 days", TransitTime(testNow.Add(-(7*24*time.Hour-time.Minute)), testNow))
	require.Equal(t, "1 weeks", TransitTime(testNow.Add(-7*24*time.Hour), testNow))
	require.Equal(t, "3 weeks", TransitTime(testNow.Add(-22*24*time.Hour), testNow))
}

func TestNormalize_TransitTimeFromShipDate(t *testing.T) {
	ship := testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	raw := fmt.Sprintf(`{"output":{"completeTrackResults":[{"trackResults":[{
		"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
		"dateAndTimes":[{"type":"SHIP","dateTime":%q}]}]}]}}`, ship)
	d, err := Normalize([]byte(raw), testNow)
	require.NoError(t, err)
	require.NotNil(t, d.Record.TransitTime)
	require.Equal(t, "1 days", *d.Record.TransitTime)
}

func TestNormalize_Dates(t *testing.T) {
	t.Run("no SHIP entry", func(t *testing.T) {
		raw := `{"output":{"completeTrackResults":[{"trackResults":[{
			"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
			"dateAndTimes":[{"type":"ACTUAL_PICKUP","dateTime":"2025-03-10T08:00:00-06:00"},{"type":"ACTUAL_DELIVERY","dateTime":"2025-03-12T10:30:00-06:00"}]}]}]}}`
		d, err := Normalize([]byte(raw), testNow)
		require.NoError(t, err)
		require.Nil(t, d.Record.ShippingDate)
		require.Nil(t, d.Record.TransitTime)
		require.NotNil(t, d.Record.DeliveryDate)
		require.True(t, d.Record.DeliveryDate.Equal(time.Date(2025, 3, 12, 16, 30, 0, 0, time.UTC)))
	})

	t.Run("unparseable SHIP", func(t *testing.T) {
		raw := `{"output":{"completeTrackResults":[{"trackResults":[{
			"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
			"dateAndTimes":[{"type":"SHIP","dateTime":"soon"}]}]}]}}`
		d, err := Normalize([]byte(raw), testNow)
		require.NoError(t, err)
		require.Nil(t, d.Record.ShippingDate)
		require.Nil(t, d.Record.TransitTime)
		require.Nil(t, d.Record.DeliveryDate)
	})

	t.Run("window preferred over actual delivery", func(t *testing.T) {
		raw := `{"output":{"completeTrackResults":[{"trackResults":[{
			"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
			"estimatedDeliveryTimeWindow":{"window":{"begins":"2025-03-25T00:00:00Z"}},
			"dateAndTimes":[{"type":"ACTUAL_DELIVERY","dateTime":"2025-03-12T10:30:00Z"}]}]}]}}`
		d, err := Normalize([]byte(raw), testNow)
		require.NoError(t, err)
		require.NotNil(t, d.Record.DeliveryDate)
		require.True(t, d.Record.DeliveryDate.Equal(time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("unparseable window falls back to actual delivery", func(t *testing.T) {
		raw := `{"output":{"completeTrackResults":[{"trackResults":[{
			"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
			"estimatedDeliveryTimeWindow":{"window":{"begins":"garbage"}},
			"dateAndTimes":[{"type":"ACTUAL_DELIVERY","dateTime":"2025-03-12T10:30:00Z"}]}]}]}}`
		d, err := Normalize([]byte(raw), testNow)
		require.NoError(t, err)
		require.NotNil(t, d.Record.DeliveryDate)
		require.True(t, d.Record.DeliveryDate.Equal(time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)))
	})

	t.Run("dateAndTimes not a list", func(t *testing.T) {
		raw := `{"output":{"completeTrackResults":[{"trackResults":[{
			"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
			"dateAndTimes":"SHIP"}]}]}}`
		d, err := Normalize([]byte(raw), testNow)
		require.NoError(t, err)
		require.Nil(t, d.Record.ShippingDate)
	})
}

func TestNormalize_ScanEventFallbacks(t *testing.T) {
	raw := `{"output":{"completeTrackResults":[{"trackResults":[{
		"trackingNumberInfo":{"trackingNumber":"1","carrierCode":"FDXE"},
		"scanEvents":[
			{"date":"not-a-date","scanLocation":"Memphis"},
			{"date":"2025-03-18T09:15:00","eventDescription":"Arrived","scanLocation":{"city":42,"countryCode":"US"}},
			{"date":"2025-03-17T09:15:00Z","exceptionDescription":"Weather delay"}
		]}]}]}}`
	d, err := Normalize([]byte(raw), testNow)
	require.NoError(t, err)
	require.Len(t, d.Events, 3)

	require.True(t, d.Events[0].Date.Equal(testNow))
	require.Equal(t, models.Unknown, d.Events[0].Status)
	require.Equal(t, models.Unknown, d.Events[0].Description)
	require.Equal(t, "Unknown, Unknown", d.Events[0].Location)
	// First event date is unparseable, so lastUpdate stays at now.
	require.True(t, d.Record.LastUpdate.Equal(testNow))

	require.Equal(t, "Arrived", d.Events[1].Status)
	require.Equal(t, "Arrived", d.Events[1].Description)
	require.Equal(t, "42, US", d.Events[1].Location)
	require.Equal(t, "9:15:00 AM", d.Events[1].Time)

	require.Equal(t, models.Unknown, d.Events[2].Status)
	require.Equal(t, "Weather delay", d.Events[2].Description)
}

func TestText_UnmarshalScalars(t *testing.T) {
	raw := `{"output":{"completeTrackResults":[{"trackResults":[{
		"trackingNumberInfo":{"trackingNumber":794843185271,"carrierCode":["FDXE"]},
		"latestStatusDetail":{"description":true}}]}]}}`
	d, err := Normalize([]byte(raw), testNow)
	require.NoError(t, err)
	require.Equal(t, "794843185271", d.Record.TrackingNumber)
	require.Equal(t, "FEDEX", d.Record.CarrierCode)
	require.Equal(t, "true", d.Record.CarrierDeliveryStatus)
}
