package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen             = ":8080"
	DefaultLogLevel           = "info"
	DefaultWeekStart          = "sunday"
	DefaultOAuthRedirectURL   = "http://localhost:8080/oauth/callback"
	DefaultReminderWebhookURL = "http://localhost:3003/api/schedule-reminder"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "web" first (server redirect flow), then "installed"
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'web' or 'installed' section)")
}

// Config holds the configuration for the admin calendar service.
type Config struct {
	Listen    string `json:"listen,omitempty" yaml:"listen,omitempty"`
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Timezone  string `json:"timezone,omitempty" yaml:"timezone,omitempty"`     // IANA name; empty means the host zone
	WeekStart string `json:"week_start,omitempty" yaml:"week_start,omitempty"` // "sunday" or "monday"

	GoogleCalendarID        string `json:"google_calendar_id,omitempty" yaml:"google_calendar_id,omitempty"`
	GoogleAPIKey            string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`
	GoogleOAuthClientID     string `json:"google_oauth_client_id,omitempty" yaml:"google_oauth_client_id,omitempty"`
	GoogleOAuthClientSecret string `json:"google_oauth_client_secret,omitempty" yaml:"google_oauth_client_secret,omitempty"`
	GoogleCredentialsPath   string `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	OAuthRedirectURL        string `json:"oauth_redirect_url,omitempty" yaml:"oauth_redirect_url,omitempty"`

	DatabaseURL        string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // empty keeps inquiries in memory
	ReminderWebhookURL string `json:"reminder_webhook_url,omitempty" yaml:"reminder_webhook_url,omitempty"`
	AdminJWTSecret     string `json:"admin_jwt_secret,omitempty" yaml:"admin_jwt_secret,omitempty"`
	RefreshCron        string `json:"refresh_cron,omitempty" yaml:"refresh_cron,omitempty"` // empty disables periodic refresh
}

// Flags carries command-line overrides. Empty fields are ignored.
type Flags struct {
	Listen                string
	LogLevel              string
	Timezone              string
	GoogleCalendarID      string
	GoogleCredentialsPath string
	DatabaseURL           string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// envOverrides maps environment variables onto config fields.
func envOverrides(config *Config) []struct {
	name  string
	field *string
} {
	return []struct {
		name  string
		field *string
	}{
		{"LISTEN_ADDR", &config.Listen},
		{"LOG_LEVEL", &config.LogLevel},
		{"TIMEZONE", &config.Timezone},
		{"WEEK_START", &config.WeekStart},
		{"GOOGLE_CALENDAR_ID", &config.GoogleCalendarID},
		{"GOOGLE_API_KEY", &config.GoogleAPIKey},
		{"GOOGLE_OAUTH_CLIENT_ID", &config.GoogleOAuthClientID},
		{"GOOGLE_OAUTH_CLIENT_SECRET", &config.GoogleOAuthClientSecret},
		{"GOOGLE_CREDENTIALS_PATH", &config.GoogleCredentialsPath},
		{"OAUTH_REDIRECT_URL", &config.OAuthRedirectURL},
		{"DATABASE_URL", &config.DatabaseURL},
		{"REMINDER_WEBHOOK_URL", &config.ReminderWebhookURL},
		{"ADMIN_JWT_SECRET", &config.AdminJWTSecret},
		{"REFRESH_CRON", &config.RefreshCron},
	}
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Missing Google values are not an error; see Missing.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	for _, env := range envOverrides(&config) {
		if value := os.Getenv(env.name); value != "" {
			*env.field = value
		}
	}

	// Step 3: Override with command-line flags (highest priority)
	overrideIfSet(&config.Listen, flags.Listen)
	overrideIfSet(&config.LogLevel, flags.LogLevel)
	overrideIfSet(&config.Timezone, flags.Timezone)
	overrideIfSet(&config.GoogleCalendarID, flags.GoogleCalendarID)
	overrideIfSet(&config.GoogleCredentialsPath, flags.GoogleCredentialsPath)
	overrideIfSet(&config.DatabaseURL, flags.DatabaseURL)

	// Step 4: Apply defaults and validate
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	if config.WeekStart == "" {
		config.WeekStart = DefaultWeekStart
	}
	if config.OAuthRedirectURL == "" {
		config.OAuthRedirectURL = DefaultOAuthRedirectURL
	}
	if config.ReminderWebhookURL == "" {
		config.ReminderWebhookURL = DefaultReminderWebhookURL
	}

	config.WeekStart = strings.ToLower(config.WeekStart)
	if config.WeekStart != "sunday" && config.WeekStart != "monday" {
		return nil, fmt.Errorf("week_start must be 'sunday' or 'monday', got '%s'", config.WeekStart)
	}
	if _, err := config.Location(); err != nil {
		return nil, err
	}

	// A credentials file fills in the OAuth client when it was not set directly
	if config.GoogleCredentialsPath != "" && config.GoogleOAuthClientID == "" {
		clientID, clientSecret, err := LoadGoogleCredentials(config.GoogleCredentialsPath)
		if err != nil {
			return nil, err
		}
		config.GoogleOAuthClientID = clientID
		if config.GoogleOAuthClientSecret == "" {
			config.GoogleOAuthClientSecret = clientSecret
		}
	}

	return &config, nil
}

func overrideIfSet(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday returns the weekday the month grid starts on.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Missing lists the environment variables whose absence limits the board.
// The list feeds the configuration banner; it is never fatal.
func (c *Config) Missing() []string {
	var missing []string
	if c.GoogleCalendarID == "" {
		missing = append(missing, "GOOGLE_CALENDAR_ID")
	}
	if c.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if c.GoogleOAuthClientID == "" {
		missing = append(missing, "GOOGLE_OAUTH_CLIENT_ID")
	}
	return missing
}
