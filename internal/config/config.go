// Package config loads and validates the process-wide configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the main configuration structure for hotspot.
type Config struct {
	// BotPassword is the shared secret for /register (required).
	BotPassword string `yaml:"bot_password"`

	// TelegramToken is the bot token from @BotFather (required).
	TelegramToken string `yaml:"telegram_token"`

	// UnifiUsername and UnifiPassword are the controller credentials (required).
	UnifiUsername string `yaml:"unifi_username"`
	UnifiPassword string `yaml:"unifi_password"`

	Portal  PortalConfig  `yaml:"portal"`
	Unifi   UnifiConfig   `yaml:"unifi"`
	Logging LoggingConfig `yaml:"logging"`

	// Locale is the default locale for portal pages and bot messages.
	Locale string `yaml:"locale"`

	// AcceptOptions are the grant durations (minutes) offered to approvers.
	AcceptOptions []int `yaml:"accept_options"`

	// PollInterval is how often the fan-out loop scans for new requests.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DatabasePath is the SQLite database file shared by both workers.
	DatabasePath string `yaml:"database_path"`
}

type PortalConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// GoOnlineURL is where guests are sent after approval when the captive
	// portal did not supply a redirect URL.
	GoOnlineURL string `yaml:"go_online_url"`
}

type UnifiConfig struct {
	// Address is the controller host or host:port.
	Address string `yaml:"address"`

	// APIVersion selects the controller API flavor: v4, v5, unifiOS or
	// UDMP-unifiOS.
	APIVersion string `yaml:"api_version"`

	// SSLVerify toggles TLS certificate verification for controller calls.
	SSLVerify *bool `yaml:"ssl_verify"`

	// Site is the UniFi site name used for authorize calls.
	Site string `yaml:"site"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultAcceptOptions offers 1 hour, 1 day, 3 days and 1 week.
var DefaultAcceptOptions = []int{60, 1440, 4320, 10080}

// Validate checks required settings. A missing required key is fatal at
// startup.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"bot_password", c.BotPassword},
		{"telegram_token", c.TelegramToken},
		{"unifi_username", c.UnifiUsername},
		{"unifi_password", c.UnifiPassword},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("configuration error: %s is required", r.key)
		}
	}
	return nil
}

// Normalize applies defaults and replaces invalid settings, returning a
// warning for each replacement.
func (c *Config) Normalize() []string {
	var warnings []string

	if c.Portal.Host == "" {
		c.Portal.Host = "0.0.0.0"
	}
	if c.Portal.Port == 0 {
		c.Portal.Port = 5000
	}
	if c.Portal.GoOnlineURL == "" {
		c.Portal.GoOnlineURL = "https://www.google.com"
	}
	if c.Unifi.Address == "" {
		c.Unifi.Address = "192.168.1.1"
	}
	if c.Unifi.APIVersion == "" {
		c.Unifi.APIVersion = "UDMP-unifiOS"
	}
	if c.Unifi.SSLVerify == nil {
		verify := true
		c.Unifi.SSLVerify = &verify
	}
	if c.Unifi.Site == "" {
		c.Unifi.Site = "default"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if len(c.AcceptOptions) == 0 {
		c.AcceptOptions = append([]int(nil), DefaultAcceptOptions...)
	} else {
		for _, opt := range c.AcceptOptions {
			if opt <= 0 {
				warnings = append(warnings,
					fmt.Sprintf("accept_options contains invalid entry %d, using default options", opt))
				c.AcceptOptions = append([]int(nil), DefaultAcceptOptions...)
				break
			}
		}
	}

	return warnings
}
