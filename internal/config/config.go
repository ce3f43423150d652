package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	KeywordsCSVPath string
	DBPath          string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Scan settings
	Interval    time.Duration
	FreshWindow time.Duration
	FetchLimit  int

	// Source (Reddit) settings
	Subreddits   string
	ClientID     string
	ClientSecret string
	UserAgent    string

	// Notifier settings
	WebhookURL     string
	WebhookTimeout time.Duration

	// AI endpoint settings
	AIBaseURL     string
	AIAPIKey      string
	AIModel       string
	AITimeout     time.Duration
	DemoVideoLink string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration from hardcoded defaults
// overlaid with environment variables for every credential-bearing setting.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		KeywordsCSVPath: DefaultKeywordsCSVPath,
		DBPath:          DefaultDBPath,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		APIKey:          GetEnvString("LEADSCOUT_API_KEY", ""),
		Interval:        time.Duration(DefaultInterval) * time.Minute,
		FreshWindow:     time.Duration(DefaultFreshHours) * time.Hour,
		FetchLimit:      GetEnvInt("LEADSCOUT_FETCH_LIMIT", DefaultFetchLimit),
		Subreddits:      GetEnvString("LEADSCOUT_SUBREDDITS", DefaultSubreddits),
		ClientID:        GetEnvString("LEADSCOUT_REDDIT_CLIENT_ID", ""),
		ClientSecret:    GetEnvString("LEADSCOUT_REDDIT_CLIENT_SECRET", ""),
		UserAgent:       GetEnvString("LEADSCOUT_USER_AGENT", DefaultUserAgent),
		WebhookURL:      GetEnvString("LEADSCOUT_WEBHOOK_URL", ""),
		WebhookTimeout:  GetEnvDuration("LEADSCOUT_WEBHOOK_TIMEOUT", time.Duration(DefaultHTTPTimeout)*time.Second),
		AIBaseURL:       GetEnvString("LEADSCOUT_AI_BASE_URL", DefaultAIBaseURL),
		AIAPIKey:        GetEnvString("LEADSCOUT_AI_API_KEY", ""),
		AIModel:         GetEnvString("LEADSCOUT_AI_MODEL", DefaultAIModel),
		AITimeout:       GetEnvDuration("LEADSCOUT_AI_TIMEOUT", time.Duration(DefaultHTTPTimeout)*time.Second),
		DemoVideoLink:   GetEnvString("LEADSCOUT_DEMO_VIDEO_LINK", ""),
		LogLevel:        logLevel,
	}
}

// ValidateScan checks the settings the scan cycle cannot run without.
// Missing configuration at startup is the one process-fatal condition.
func (c *Config) ValidateScan() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("reddit credentials not configured (LEADSCOUT_REDDIT_CLIENT_ID / LEADSCOUT_REDDIT_CLIENT_SECRET)")
	}
	if c.Subreddits == "" {
		return fmt.Errorf("no subreddits configured (LEADSCOUT_SUBREDDITS)")
	}
	return nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
