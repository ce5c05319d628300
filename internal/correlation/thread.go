package correlation

import (
	"context"
	"fmt"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
)

// fetchWindow is how many recent messages a resolve scan inspects. Wide
// enough that a busy thread doesn't push the marker out of view.
const fetchWindow = 100

// Messenger is the slice of the chat platform the thread store needs.
type Messenger interface {
	// SendMessage posts a message into a channel or thread as the bot.
	SendMessage(ctx context.Context, channelID, content string) error
	// RecentMessages returns the content of up to limit most recent
	// messages in the channel, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]string, error)
}

// ThreadStore persists the mapping as a marker message inside the thread
// itself. Resolution scans the thread transcript with a bounded retry,
// because a marker that was just posted may not be visible to reads yet.
type ThreadStore struct {
	messenger Messenger
	policy    Policy
}

// NewThreadStore creates a thread-embedded store with the given wait policy.
func NewThreadStore(m Messenger, policy Policy) *ThreadStore {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &ThreadStore{messenger: m, policy: policy}
}

// Record posts the marker message. Callers invoke this immediately after
// ticket creation so the marker is the earliest bot message in the thread.
func (s *ThreadStore) Record(ctx context.Context, threadID, ticketID string) error {
	if err := s.messenger.SendMessage(ctx, threadID, Marker(ticketID)); err != nil {
		return fmt.Errorf("correlation: post marker in thread %s: %w", threadID, err)
	}
	return nil
}

// Resolve scans the thread for the marker, retrying on transient absence
// per the store's policy before giving up with ErrNotFound.
func (s *ThreadStore) Resolve(ctx context.Context, threadID string) (string, error) {
	var ticketID string

	err := retry.Retry(func(attempt uint) error {
		id, err := s.scan(ctx, threadID)
		if err != nil {
			return err
		}
		ticketID = id
		return nil
	},
		strategy.Limit(uint(s.policy.Attempts)),
		strategy.Wait(s.policy.Interval),
		func(attempt uint) bool { return ctx.Err() == nil },
	)
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if err != nil {
		return "", err
	}
	return ticketID, nil
}

func (s *ThreadStore) scan(ctx context.Context, threadID string) (string, error) {
	contents, err := s.messenger.RecentMessages(ctx, threadID, fetchWindow)
	if err != nil {
		return "", fmt.Errorf("correlation: fetch thread %s: %w", threadID, err)
	}
	for _, content := range contents {
		if id, ok := ParseMarker(content); ok {
			return id, nil
		}
	}
	return "", ErrNotFound
}
