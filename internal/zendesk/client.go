// Package zendesk is a thin client for the Zendesk ticket REST API.
package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Ticket is the subset of a Zendesk ticket this bridge cares about.
type Ticket struct {
	ID      string
	Subject string
	Status  string
}

// Client calls the Zendesk REST API for a single subdomain.
type Client struct {
	client   *http.Client
	baseURL  string
	username string // "<email>/token"
	token    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(z *Client) { z.client = c }
}

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(url string) Option {
	return func(z *Client) { z.baseURL = url }
}

// New creates a Zendesk client authenticated with an email/API-token pair.
func New(subdomain, email, token string, opts ...Option) *Client {
	z := &Client{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  fmt.Sprintf("https://%s.zendesk.com/api/v2", subdomain),
		username: email + "/token",
		token:    token,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// CreateTicket opens a new ticket with the given subject.
func (z *Client) CreateTicket(ctx context.Context, subject string) (*Ticket, error) {
	body := map[string]any{
		"ticket": map[string]any{
			"subject": subject,
			"comment": map[string]any{"body": "New Discord Ticket"},
		},
	}

	var resp struct {
		Ticket struct {
			ID      int64  `json:"id"`
			Subject string `json:"subject"`
			Status  string `json:"status"`
		} `json:"ticket"`
	}
	if err := z.do(ctx, http.MethodPost, "/tickets.json", body, &resp); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return &Ticket{
		ID:      strconv.FormatInt(resp.Ticket.ID, 10),
		Subject: resp.Ticket.Subject,
		Status:  resp.Ticket.Status,
	}, nil
}

// AddComment appends a public comment to a ticket and forces its status
// back to open so the agent queue picks it up.
func (z *Client) AddComment(ctx context.Context, ticketID, comment string) error {
	body := map[string]any{
		"ticket": map[string]any{
			"comment": map[string]any{"body": comment},
			"status":  "open",
		},
	}
	if err := z.do(ctx, http.MethodPut, "/tickets/"+ticketID+".json", body, nil); err != nil {
		return fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	return nil
}

// SetThreadReference records the originating thread id in a custom field and
// assigns the ticket to a group. Field or group ids of zero skip the
// corresponding update; if both are zero the call is a no-op.
func (z *Client) SetThreadReference(ctx context.Context, ticketID, threadID string, fieldID, groupID int64) error {
	ticket := map[string]any{}
	if fieldID != 0 {
		ticket["custom_fields"] = []map[string]any{
			{"id": fieldID, "value": threadID},
		}
	}
	if groupID != 0 {
		ticket["group_id"] = groupID
	}
	if len(ticket) == 0 {
		return nil
	}

	body := map[string]any{"ticket": ticket}
	if err := z.do(ctx, http.MethodPut, "/tickets/"+ticketID+".json", body, nil); err != nil {
		return fmt.Errorf("set thread reference on ticket %s: %w", ticketID, err)
	}
	return nil
}

func (z *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, z.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(z.username, z.token)

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("zendesk API status %d: %s", resp.StatusCode, snippet(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
