package carrier

import (
	"context"
	"regexp"
)

// Client fetches the raw tracking response for a single tracking number.
// The payload shape is carrier specific and is normalized elsewhere.
type Client interface {
	Track(ctx context.Context, trackingNumber string) ([]byte, error)
}

const (
	CodeFedEx   = "FEDEX"
	CodeUPS     = "UPS"
	CodeUSPS    = "USPS"
	CodeDHL     = "DHL"
	CodeUnknown = "UNKNOWN"
)

// Checked in order; FedEx numbers overlap with the shorter DHL patterns.
var numberPatterns = []struct {
	code string
	re   *regexp.Regexp
}{
	{CodeFedEx, regexp.MustCompile(`(\b96\d{20}\b)|(\b\d{15}\b)|(\b\d{12}\b)`)},
	{CodeUPS, regexp.MustCompile(`\b1Z[a-zA-Z0-9]{16}\b`)},
	{CodeUSPS, regexp.MustCompile(`(\b(94|93|92|91|95|70|14|23|03)\d{20}\b)|(\b\d{26}\b)|(\b\d{30}\b)`)},
	{CodeDHL, regexp.MustCompile(`(\b\d{10}\b)|(\b\d{9}\b)`)},
}

// Identify guesses the carrier from the tracking number format.
func Identify(trackingNumber string) string {
	for _, p := range numberPatterns {
		if p.re.MatchString(trackingNumber) {
			return p.code
		}
	}
	return CodeUnknown
}
