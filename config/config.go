// Package config provides configuration loading and management for notebot.
package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Editor mode names.
const (
	EditorGitHub = "github"
	EditorKV     = "kv"
)

// Config represents the complete notebot configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	NATS   NATSConfig   `yaml:"nats"`
	GitHub GitHubConfig `yaml:"github"`
	Bot    BotConfig    `yaml:"bot"`
}

// ServerConfig configures the webhook HTTP server
type ServerConfig struct {
	// Addr is the listen address for the webhook server
	Addr string `yaml:"addr"`
	// WebhookSecret is the shared secret for X-Hub-Signature-256 verification
	WebhookSecret string `yaml:"webhook_secret"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// GitHubConfig configures the GitHub API client
type GitHubConfig struct {
	// Token is the API token the bot authenticates with
	Token string `yaml:"token"`
	// APIBaseURL overrides the API endpoint (GitHub Enterprise)
	APIBaseURL string `yaml:"api_base_url"`
}

// BotConfig configures command handling
type BotConfig struct {
	// Mention is the handle commands are addressed to (without the @)
	Mention string `yaml:"mention"`
	// Marker is the delimited-region name written into document bodies
	Marker string `yaml:"marker"`
	// Editor selects the persistence backend: "github" or "kv"
	Editor string `yaml:"editor"`
	// Repos is a list of owner/repo glob patterns the bot responds in
	// (empty = all repositories)
	Repos []string `yaml:"repos"`
	// MaxAttempts bounds the conflict retry loop per command
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
		GitHub: GitHubConfig{
			APIBaseURL: "", // Public GitHub
		},
		Bot: BotConfig{
			Mention:     "notebot",
			Marker:      "SUMMARY",
			Editor:      EditorGitHub,
			Repos:       nil, // All repositories
			MaxAttempts: 3,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Bot.Mention == "" {
		return fmt.Errorf("bot.mention is required")
	}
	if c.Bot.Marker == "" {
		return fmt.Errorf("bot.marker is required")
	}
	if c.Bot.Editor != EditorGitHub && c.Bot.Editor != EditorKV {
		return fmt.Errorf("bot.editor must be %q or %q", EditorGitHub, EditorKV)
	}
	if c.Bot.Editor == EditorGitHub && c.GitHub.Token == "" {
		return fmt.Errorf("github.token is required with the github editor")
	}
	if c.Bot.MaxAttempts <= 0 {
		return fmt.Errorf("bot.max_attempts must be positive")
	}
	for _, pattern := range c.Bot.Repos {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("bot.repos: invalid pattern %q", pattern)
		}
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.WebhookSecret != "" {
		c.Server.WebhookSecret = other.Server.WebhookSecret
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// GitHub
	if other.GitHub.Token != "" {
		c.GitHub.Token = other.GitHub.Token
	}
	if other.GitHub.APIBaseURL != "" {
		c.GitHub.APIBaseURL = other.GitHub.APIBaseURL
	}

	// Bot
	if other.Bot.Mention != "" {
		c.Bot.Mention = other.Bot.Mention
	}
	if other.Bot.Marker != "" {
		c.Bot.Marker = other.Bot.Marker
	}
	if other.Bot.Editor != "" {
		c.Bot.Editor = other.Bot.Editor
	}
	if len(other.Bot.Repos) > 0 {
		c.Bot.Repos = other.Bot.Repos
	}
	if other.Bot.MaxAttempts != 0 {
		c.Bot.MaxAttempts = other.Bot.MaxAttempts
	}
}

// Parse decodes a YAML document into a bare Config (no defaults applied).
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}
