// Package txref encodes the transaction reference threaded through
// provider checkout flows: TX-{orderId}-{timestampMillis}. The order id is
// a UUID and therefore contains dashes itself; only the last dash-delimited
// segment is the timestamp.
package txref

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefix = "TX-"

// Encode builds a canonical reference for the given order id. The
// timestamp suffix is informational only.
func Encode(orderID string) string {
	return fmt.Sprintf("%s%s-%d", prefix, orderID, time.Now().UnixMilli())
}

// Decode extracts the order id from a canonical reference. It returns ""
// for anything that does not carry the TX- prefix, a timestamp segment and
// a UUID order id; it never panics on malformed input. Provider-issued
// references can mimic the prefix-and-timestamp shape, so the UUID check
// is what keeps them from decoding into garbage order ids.
func Decode(ref string) string {
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(ref, prefix)
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 {
		return ""
	}
	orderID := rest[:idx]
	if _, err := uuid.Parse(orderID); err != nil {
		return ""
	}
	return orderID
}
