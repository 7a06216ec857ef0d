package payment

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// timestampLayout renders ISO-8601 UTC with millisecond precision,
// e.g. 2025-07-30T12:34:56.789Z.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Payment is a single dispatched payment as stored locally and echoed to the
// client. CorrelationID is server-assigned at creation time.
type Payment struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// Record is a Payment plus its dispatch outcome, the unit handed to the write
// queue for persistence.
type Record struct {
	Payment
	DefaultService bool
	Processed      bool
}

// New builds a Payment with a fresh correlation ID and the current UTC
// timestamp.
func New(amount float64) Payment {
	return Payment{
		CorrelationID: NewCorrelationID(),
		Amount:        amount,
		RequestedAt:   Timestamp(NowUTC()),
	}
}

// NewCorrelationID returns a random v4 UUID string.
func NewCorrelationID() string {
	return uuid.NewString()
}

// NowUTC returns the current wall-clock time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Timestamp formats t as ISO-8601 UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts any reasonable ISO-8601 rendition and returns the
// instant in UTC. Clients are not consistent about fractional seconds or the
// trailing Z, so parsing is lenient.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
