// Package correlation maintains the mapping from a chat thread to its
// remote ticket. The mapping is written two ways: a keyed row in a local
// database and a sentinel marker message posted into the thread itself.
package correlation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MarkerPrefix is the fixed prefix of the sentinel message that records a
// thread's ticket id inside the thread transcript.
const MarkerPrefix = "ZENDESK_TICKET_ID:"

// ErrNotFound reports that no ticket mapping exists for a thread. Callers
// must not treat it as permanent absence until the retry budget is spent;
// Resolve implementations handle that internally.
var ErrNotFound = errors.New("correlation: ticket mapping not found")

// Store records and resolves thread → ticket mappings.
type Store interface {
	// Record durably associates a thread with a ticket id. It must
	// complete before any message-created event for the thread can be
	// expected to resolve.
	Record(ctx context.Context, threadID, ticketID string) error
	// Resolve returns the ticket id for a thread, or ErrNotFound.
	Resolve(ctx context.Context, threadID string) (string, error)
}

// Policy bounds the wait for marker visibility. Marker reads and writes go
// through different API paths on the same backing store, so a read shortly
// after the write may miss; these values replace what used to be magic
// one-second constants.
type Policy struct {
	// PreDelay is slept before the first resolution attempt.
	PreDelay time.Duration
	// Attempts is the total number of resolution attempts.
	Attempts int
	// Interval is the fixed spacing between attempts. No backoff.
	Interval time.Duration
}

// DefaultPolicy matches the observed read-after-write latency of the chat
// platform: one second of pre-delay, then three attempts a second apart.
func DefaultPolicy() Policy {
	return Policy{
		PreDelay: time.Second,
		Attempts: 3,
		Interval: time.Second,
	}
}

// Marker formats the sentinel message content for a ticket id.
func Marker(ticketID string) string {
	return MarkerPrefix + ticketID
}

// ParseMarker extracts the ticket id from a marker message. The second
// return is false when the content is not a marker.
func ParseMarker(content string) (string, bool) {
	rest, ok := strings.CutPrefix(content, MarkerPrefix)
	if !ok {
		return "", false
	}
	id := strings.TrimSpace(rest)
	if id == "" {
		return "", false
	}
	return id, true
}
