package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultConversationPrefix = "echo_show"
	DefaultPollInterval       = 350 * time.Millisecond
	DefaultMaxWait            = 5000 * time.Millisecond

	// PlatformTurnBudget is how long the voice platform waits for a response.
	PlatformTurnBudget = 8 * time.Second
	// HostTurnBudget bounds a whole turn and stays below PlatformTurnBudget.
	HostTurnBudget = 7500 * time.Millisecond
	// MaxWaitCeiling leaves room inside HostTurnBudget for the send call.
	MaxWaitCeiling = 6500 * time.Millisecond
)

// ErrNotConfigured is returned when SPACEBOT_WEBHOOK_BASE is missing.
var ErrNotConfigured = errors.New("spacebot webhook base url is not configured")

// Options holds the raw recognized environment options before normalization.
type Options struct {
	WebhookBase        string `env:"SPACEBOT_WEBHOOK_BASE"`
	AgentID            string `env:"SPACEBOT_AGENT_ID"`
	ConversationPrefix string `env:"SPACEBOT_CONVERSATION_PREFIX"`
	PollIntervalMS     string `env:"SPACEBOT_POLL_INTERVAL_MS"`
	MaxWaitMS          string `env:"SPACEBOT_MAX_WAIT_MS"`
	UserHashSalt       string `env:"SPACEBOT_USER_HASH_SALT"`
}

// Settings is the normalized, read-only configuration shared by every turn.
type Settings struct {
	BaseURL            string
	AgentID            string
	ConversationPrefix string
	PollInterval       time.Duration
	MaxWait            time.Duration
	UserHashSalt       string
}

// Server carries options for the HTTP host adapter only.
type Server struct {
	Port          string
	AllowedOrigin string
}

// Load reads .env (if present) and the process environment. The returned
// Settings are usable even when err is ErrNotConfigured; callers decide
// whether to short-circuit.
func Load() (Settings, error) {
	_ = godotenv.Load()
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}
	return opts.Settings()
}

func LoadServer() Server {
	_ = godotenv.Load()
	return Server{
		Port:          getEnvDefault("PORT", "8080"),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", "*"),
	}
}

// Settings validates and normalizes the raw options.
func (o Options) Settings() (Settings, error) {
	s := Settings{
		BaseURL:            strings.TrimRight(strings.TrimSpace(o.WebhookBase), "/"),
		AgentID:            strings.TrimSpace(o.AgentID),
		ConversationPrefix: strings.TrimSpace(o.ConversationPrefix),
		PollInterval:       parseMillis(o.PollIntervalMS, DefaultPollInterval),
		MaxWait:            parseMillis(o.MaxWaitMS, DefaultMaxWait),
		UserHashSalt:       o.UserHashSalt,
	}
	if s.ConversationPrefix == "" {
		s.ConversationPrefix = DefaultConversationPrefix
	}
	if s.MaxWait > MaxWaitCeiling {
		s.MaxWait = MaxWaitCeiling
	}
	if s.BaseURL == "" {
		return s, ErrNotConfigured
	}
	return s, nil
}

// Configured reports whether a backend address is present.
func (s Settings) Configured() bool {
	return s.BaseURL != ""
}

func parseMillis(raw string, def time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
