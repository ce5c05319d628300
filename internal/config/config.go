package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level forumdesk configuration.
type Config struct {
	Discord Discord
	Zendesk Zendesk
	Relay   Relay
	Resolve Resolve
	Server  Server
	DBPath  string
	Audit   Audit
}

// Discord holds chat-platform credentials and scoping.
type Discord struct {
	Token     string
	PublicKey ed25519.PublicKey
	GuildID   string
	// ForumID is the support forum channel; only threads under it are bridged.
	ForumID string
}

// Zendesk holds ticketing API credentials and ticket placement settings.
type Zendesk struct {
	Subdomain string
	Email     string
	APIToken  string
	// ThreadFieldID is the custom field that receives the originating
	// thread id. GroupID is the group new tickets are assigned to.
	// Both optional; zero disables the corresponding update.
	ThreadFieldID int64
	GroupID       int64
	WebhookSecret string
}

// Relay maps ticket commenter ids to their delivery webhook URLs.
type Relay struct {
	Routes map[string]string
}

// Resolve is the consistency-wait policy for correlation lookups.
// Marker reads go through a different path than the write that created
// them, so a lookup may transiently miss; these knobs bound the wait.
type Resolve struct {
	PreDelay time.Duration
	Attempts int
	Interval time.Duration
}

// Server holds HTTP listener settings.
type Server struct {
	Port int
}

// Audit holds audit log settings.
type Audit struct {
	Path string
}

// Load builds configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Discord: Discord{
			Token:   os.Getenv("DISCORD_TOKEN"),
			GuildID: os.Getenv("DISCORD_GUILD_ID"),
			ForumID: os.Getenv("DISCORD_SUPPORT_FORUM_ID"),
		},
		Zendesk: Zendesk{
			Subdomain:     os.Getenv("ZENDESK_SUBDOMAIN"),
			Email:         os.Getenv("ZENDESK_EMAIL"),
			APIToken:      os.Getenv("ZENDESK_API_TOKEN"),
			WebhookSecret: os.Getenv("ZENDESK_WEBHOOK_SECRET"),
		},
		Resolve: Resolve{
			PreDelay: getenvDuration("RESOLVE_PRE_DELAY", time.Second),
			Attempts: getenvInt("RESOLVE_ATTEMPTS", 3),
			Interval: getenvDuration("RESOLVE_INTERVAL", time.Second),
		},
		Server: Server{
			Port: getenvInt("PORT", 3000),
		},
		DBPath: getenv("DB_PATH", "./data/forumdesk.db"),
		Audit: Audit{
			Path: getenv("AUDIT_LOG_PATH", "app.log"),
		},
	}

	if v := os.Getenv("PUBLIC_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("config: PUBLIC_KEY: %w", err)
		}
		cfg.Discord.PublicKey = ed25519.PublicKey(key)
	}

	if v := os.Getenv("ZENDESK_THREAD_FIELD_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: ZENDESK_THREAD_FIELD_ID: %w", err)
		}
		cfg.Zendesk.ThreadFieldID = id
	}
	if v := os.Getenv("ZENDESK_GROUP_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: ZENDESK_GROUP_ID: %w", err)
		}
		cfg.Zendesk.GroupID = id
	}

	routes, err := ParseRoutes(os.Getenv("COMMENTER_ROUTES"))
	if err != nil {
		return nil, fmt.Errorf("config: COMMENTER_ROUTES: %w", err)
	}
	cfg.Relay.Routes = routes

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseRoutes parses a comma-separated list of commenter_id=webhook_url
// pairs into a lookup table.
func ParseRoutes(s string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, rawURL, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid route %q (want commenter_id=url)", pair)
		}
		id = strings.TrimSpace(id)
		rawURL = strings.TrimSpace(rawURL)
		if id == "" || rawURL == "" {
			return nil, fmt.Errorf("invalid route %q (empty id or url)", pair)
		}
		u, err := url.Parse(rawURL)
		if err != nil || u.Scheme != "https" && u.Scheme != "http" {
			return nil, fmt.Errorf("invalid route url %q", rawURL)
		}
		if _, dup := routes[id]; dup {
			return nil, fmt.Errorf("duplicate route for commenter %q", id)
		}
		routes[id] = rawURL
	}
	return routes, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "DISCORD_TOKEN is required")
	}
	if len(c.Discord.PublicKey) != ed25519.PublicKeySize {
		errs = append(errs, "PUBLIC_KEY must be a 32-byte hex ed25519 key")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "DISCORD_GUILD_ID is required")
	}
	if c.Discord.ForumID == "" {
		errs = append(errs, "DISCORD_SUPPORT_FORUM_ID is required")
	}
	if c.Zendesk.Subdomain == "" {
		errs = append(errs, "ZENDESK_SUBDOMAIN is required")
	}
	if c.Zendesk.Email == "" {
		errs = append(errs, "ZENDESK_EMAIL is required")
	}
	if c.Zendesk.APIToken == "" {
		errs = append(errs, "ZENDESK_API_TOKEN is required")
	}
	if c.Resolve.Attempts < 1 {
		errs = append(errs, "RESOLVE_ATTEMPTS must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "PORT must be a valid port number")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
