// Package bridge relays Discord forum events into Zendesk tickets.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forumdesk-io/forumdesk/internal/correlation"
	"github.com/forumdesk-io/forumdesk/internal/zendesk"
)

// failureNotice is posted into the thread when bridging fails, so the user
// knows the support case did not reach the ticket queue.
const failureNotice = "Failed to create or update Zendesk ticket. Please try again later."

// provenanceSuffix tags relayed comments with their origin.
const provenanceSuffix = "\n\n*Message from Discord*"

// Thread is a forum thread creation event.
type Thread struct {
	ID       string
	ParentID string
	Name     string
}

// Message is a thread message creation event.
type Message struct {
	ID        string
	ThreadID  string
	ParentID  string // parent of the thread the message belongs to
	Content   string
	AuthorID  string
	AuthorBot bool
}

// Ticketer is the slice of the ticket system the bridge needs.
type Ticketer interface {
	CreateTicket(ctx context.Context, subject string) (*zendesk.Ticket, error)
	AddComment(ctx context.Context, ticketID, comment string) error
	SetThreadReference(ctx context.Context, ticketID, threadID string, fieldID, groupID int64) error
}

// Poster sends messages into a thread as the bot.
type Poster interface {
	SendMessage(ctx context.Context, channelID, content string) error
}

// Bridge handles inbound chat events for one support forum.
type Bridge struct {
	forumID       string
	threadFieldID int64
	groupID       int64
	preDelay      time.Duration

	tickets Ticketer
	store   correlation.Store
	poster  Poster
	logger  *slog.Logger
}

// Config holds bridge settings.
type Config struct {
	ForumID       string
	ThreadFieldID int64
	GroupID       int64
	// PreDelay is slept before resolving a message's ticket, giving a
	// freshly posted marker time to become visible.
	PreDelay time.Duration
}

// New creates a bridge. logger may be nil.
func New(cfg Config, tickets Ticketer, store correlation.Store, poster Poster, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		forumID:       cfg.ForumID,
		threadFieldID: cfg.ThreadFieldID,
		groupID:       cfg.GroupID,
		preDelay:      cfg.PreDelay,
		tickets:       tickets,
		store:         store,
		poster:        poster,
		logger:        logger,
	}
}

// HandleThreadCreate opens a ticket for a new support thread and records
// the correlation. Threads outside the support forum are ignored.
//
// Ordering matters: the marker is recorded only after ticket creation
// succeeds, and a record failure surfaces loudly so an orphaned ticket
// never passes silently.
func (b *Bridge) HandleThreadCreate(ctx context.Context, th Thread) error {
	if th.ParentID != b.forumID {
		return nil
	}

	ticket, err := b.tickets.CreateTicket(ctx, th.Name)
	if err != nil {
		b.fail(ctx, th.ID, fmt.Errorf("create ticket for thread %s: %w", th.ID, err))
		return err
	}

	if err := b.store.Record(ctx, th.ID, ticket.ID); err != nil {
		b.fail(ctx, th.ID, fmt.Errorf("record correlation %s -> %s: %w", th.ID, ticket.ID, err))
		return err
	}

	if err := b.tickets.SetThreadReference(ctx, ticket.ID, th.ID, b.threadFieldID, b.groupID); err != nil {
		b.fail(ctx, th.ID, fmt.Errorf("set thread reference on ticket %s: %w", ticket.ID, err))
		return err
	}

	b.logger.Info("new thread bridged", "thread", th.ID, "ticket", ticket.ID)
	return nil
}

// HandleMessageCreate relays a human reply into the thread's ticket as a
// comment. Bot-authored messages are ignored so marker and relay messages
// never echo back into the loop.
func (b *Bridge) HandleMessageCreate(ctx context.Context, m Message) error {
	if m.ParentID != b.forumID || m.AuthorBot {
		return nil
	}

	// Give the marker's write path a head start over our read path.
	if b.preDelay > 0 {
		select {
		case <-time.After(b.preDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ticketID, err := b.store.Resolve(ctx, m.ThreadID)
	if err != nil {
		if errors.Is(err, correlation.ErrNotFound) {
			// Terminal for this event: retries are already exhausted
			// and the message is not re-queued.
			b.logger.Error("ticket resolution exhausted, dropping message",
				"thread", m.ThreadID, "message", m.ID)
			return nil
		}
		b.logger.Error("ticket resolution failed", "thread", m.ThreadID, "error", err)
		return err
	}

	if err := b.tickets.AddComment(ctx, ticketID, m.Content+provenanceSuffix); err != nil {
		b.logger.Error("ticket comment failed", "thread", m.ThreadID, "ticket", ticketID, "error", err)
		return err
	}

	b.logger.Info("message relayed to ticket", "thread", m.ThreadID, "ticket", ticketID)
	return nil
}

// fail logs a bridging failure and posts the user-visible notice into the
// thread. The notice is best effort.
func (b *Bridge) fail(ctx context.Context, threadID string, err error) {
	b.logger.Error("thread bridging failed", "thread", threadID, "error", err)
	if perr := b.poster.SendMessage(ctx, threadID, failureNotice); perr != nil {
		b.logger.Error("failure notice not delivered", "thread", threadID, "error", perr)
	}
}
