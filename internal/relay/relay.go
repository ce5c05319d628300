// Package relay delivers ticket comments back into Discord threads through
// per-commenter webhook URLs.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownCommenter reports a commenter id with no configured delivery
// route. The ingress maps it to a 400 so the remote system sees a hard
// rejection instead of a silent drop.
var ErrUnknownCommenter = errors.New("relay: no route for commenter")

// ErrThreadNotActive reports that the payload's thread is not among the
// forum's active threads (archived, or never existed). Treated as a
// processed event: the remote system must not retry it forever.
var ErrThreadNotActive = errors.New("relay: thread not in active list")

// Payload is the inbound ticket-comment event.
type Payload struct {
	ThreadID           string `json:"threadID"`
	CommentDescription string `json:"comment_description"`
	CommenterID        string `json:"commenter_id"`
}

// ThreadLister returns the ids of the support forum's active threads.
type ThreadLister interface {
	ActiveThreads(ctx context.Context) ([]string, error)
}

// Relay routes ticket comments to the matching thread's delivery webhook.
type Relay struct {
	routes  map[string]string
	threads ThreadLister
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// New creates a relay over a validated commenter → webhook-URL table.
func New(routes map[string]string, threads ThreadLister, logger *slog.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		routes:  routes,
		threads: threads,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver posts the comment into the payload's thread. The thread is
// located by scanning the active-thread list, so archived threads are
// unreachable and reported as ErrThreadNotActive.
func (r *Relay) Deliver(ctx context.Context, p Payload) error {
	deliveryID := uuid.NewString()
	log := r.logger.With("delivery", deliveryID, "thread", p.ThreadID, "commenter", p.CommenterID)

	hookURL, ok := r.routes[p.CommenterID]
	if !ok {
		log.Warn("rejected comment from unmapped commenter")
		return fmt.Errorf("%w: %s", ErrUnknownCommenter, p.CommenterID)
	}

	active, err := r.threads.ActiveThreads(ctx)
	if err != nil {
		return fmt.Errorf("relay: list active threads: %w", err)
	}

	found := false
	for _, id := range active {
		if id == p.ThreadID {
			found = true
			break
		}
	}
	if !found {
		log.Info("no matching active thread, treating as consumed")
		return fmt.Errorf("%w: %s", ErrThreadNotActive, p.ThreadID)
	}

	if err := r.post(ctx, hookURL, p.ThreadID, p.CommentDescription); err != nil {
		return err
	}
	log.Info("comment delivered to thread")
	return nil
}

// post executes the delivery webhook with the thread id as a query
// parameter, so the message lands inside the thread rather than the
// parent channel.
func (r *Relay) post(ctx context.Context, hookURL, threadID, content string) error {
	u, err := url.Parse(hookURL)
	if err != nil {
		return fmt.Errorf("relay: parse webhook url: %w", err)
	}
	q := u.Query()
	q.Set("thread_id", threadID)
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("relay: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay: execute webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay: webhook status %d", resp.StatusCode)
	}
	return nil
}
