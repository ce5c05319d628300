// Package discord adapts the Discord gateway and REST API to the narrow
// interfaces the rest of the bridge consumes.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/forumdesk-io/forumdesk/internal/bridge"
)

// Config holds Discord connector configuration.
type Config struct {
	Token   string
	GuildID string
	ForumID string
}

// Events receives translated gateway events.
type Events interface {
	HandleThreadCreate(ctx context.Context, th bridge.Thread) error
	HandleMessageCreate(ctx context.Context, m bridge.Message) error
}

// Connector owns the long-lived gateway session and exposes the REST
// calls the bridge needs. Safe for concurrent use; each gateway event is
// dispatched on its own goroutine by the SDK.
type Connector struct {
	session *discordgo.Session
	cfg     Config
	logger  *slog.Logger
}

// New creates a Discord connector. logger may be nil.
func New(cfg Config, logger *slog.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	return &Connector{session: session, cfg: cfg, logger: logger}, nil
}

// RegisterHandlers wires gateway events into the bridge. Must be called
// before Start.
func (c *Connector) RegisterHandlers(ctx context.Context, events Events) {
	c.session.AddHandler(func(_ *discordgo.Session, e *discordgo.ThreadCreate) {
		if !e.NewlyCreated {
			return
		}
		th := bridge.Thread{ID: e.ID, ParentID: e.ParentID, Name: e.Name}
		if err := events.HandleThreadCreate(ctx, th); err != nil {
			c.logger.Error("thread create handler error", "thread", e.ID, "error", err)
		}
	})

	c.session.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageCreate) {
		parentID, err := c.channelParent(e.ChannelID)
		if err != nil {
			c.logger.Error("channel lookup failed", "channel", e.ChannelID, "error", err)
			return
		}
		m := bridge.Message{
			ID:        e.ID,
			ThreadID:  e.ChannelID,
			ParentID:  parentID,
			Content:   e.Content,
			AuthorID:  authorID(e.Message),
			AuthorBot: e.Author != nil && e.Author.Bot,
		}
		if err := events.HandleMessageCreate(ctx, m); err != nil {
			c.logger.Error("message create handler error", "message", e.ID, "error", err)
		}
	})
}

// Start opens the gateway connection. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	c.logger.Info("discord gateway connected")

	<-ctx.Done()
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	c.logger.Info("discord gateway closed")
	return ctx.Err()
}

// SendMessage posts a message into a channel or thread as the bot.
func (c *Connector) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send message to %s: %w", channelID, err)
	}
	return nil
}

// RecentMessages returns the content of up to limit most recent messages
// in a channel, newest first.
func (c *Connector) RecentMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetch messages from %s: %w", channelID, err)
	}
	contents := make([]string, len(msgs))
	for i, m := range msgs {
		contents[i] = m.Content
	}
	return contents, nil
}

// ActiveThreads returns the ids of the support forum's active threads.
func (c *Connector) ActiveThreads(ctx context.Context) ([]string, error) {
	list, err := c.session.GuildThreadsActive(c.cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: list active threads: %w", err)
	}
	return threadIDs(list.Threads, c.cfg.ForumID), nil
}

// channelParent resolves a channel's parent id, preferring the gateway
// state cache over a REST round trip.
func (c *Connector) channelParent(channelID string) (string, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch.ParentID, nil
	}
	ch, err := c.session.Channel(channelID)
	if err != nil {
		return "", err
	}
	return ch.ParentID, nil
}

// threadIDs filters a thread list down to children of the given forum.
func threadIDs(threads []*discordgo.Channel, forumID string) []string {
	ids := make([]string, 0, len(threads))
	for _, th := range threads {
		if th.ParentID == forumID {
			ids = append(ids, th.ID)
		}
	}
	return ids
}

func authorID(m *discordgo.Message) string {
	if m.Author == nil {
		return ""
	}
	return m.Author.ID
}
