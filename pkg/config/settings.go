package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the application options that are not part of the
// user's download configuration document
type Settings struct {
	// API endpoint and credentials
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Post acquisition
	Grab GrabConfig `yaml:"grab" json:"grab"`

	// Location of the JSON configuration document
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Interactive behaviour
	Prompt PromptConfig `yaml:"prompt" json:"prompt"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds e621-specific configuration
type APIConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	SafeBaseURL string        `yaml:"safe_base_url" json:"safe_base_url"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	Login       string        `yaml:"login" json:"login"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
}

// GrabConfig controls how tag groups are resolved into posts
type GrabConfig struct {
	TagsFile     string   `yaml:"tags_file" json:"tags_file"`
	PostsPerPage int      `yaml:"posts_per_page" json:"posts_per_page"`
	MaxPages     int      `yaml:"max_pages" json:"max_pages"`
	Blacklist    []string `yaml:"blacklist" json:"blacklist"`
}

// StorageConfig holds the configuration document location
type StorageConfig struct {
	ConfigFile string `yaml:"config_file" json:"config_file"`
}

// PromptConfig holds interactive prompt behaviour
type PromptConfig struct {
	// SafeMode is one of "ask", "always" or "never"
	SafeMode     string `yaml:"safe_mode" json:"safe_mode"`
	PauseOnError bool   `yaml:"pause_on_error" json:"pause_on_error"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	SafeModeAsk    = "ask"
	SafeModeAlways = "always"
	SafeModeNever  = "never"

	// MaxPostsPerPage is the largest page size the posts endpoint accepts
	MaxPostsPerPage = 320
)

// DefaultSettings returns a Settings instance with sensible defaults
func DefaultSettings() *Settings {
	return &Settings{
		API: APIConfig{
			BaseURL:     "https://e621.net",
			SafeBaseURL: "https://e926.net",
			UserAgent:   "e621dl/1.0 (tag-driven downloader)",
			Timeout:     60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			MaxRetries:        3,
		},
		Grab: GrabConfig{
			TagsFile:     "tags.txt",
			PostsPerPage: MaxPostsPerPage,
			MaxPages:     0, // 0 means until the API runs out of results
		},
		Storage: StorageConfig{
			ConfigFile: DefaultConfigName,
		},
		Prompt: PromptConfig{
			SafeMode:     SafeModeAsk,
			PauseOnError: false,
		},
		Notifications: NotificationConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads settings from environment variables
func (s *Settings) LoadFromEnv() error {
	if login := os.Getenv("E621DL_LOGIN"); login != "" {
		s.API.Login = login
	}
	if apiKey := os.Getenv("E621DL_API_KEY"); apiKey != "" {
		s.API.APIKey = apiKey
	}
	if userAgent := os.Getenv("E621DL_USER_AGENT"); userAgent != "" {
		s.API.UserAgent = userAgent
	}

	if rps := os.Getenv("E621DL_REQUESTS_PER_SECOND"); rps != "" {
		val, err := strconv.Atoi(rps)
		if err != nil {
			return fmt.Errorf("invalid E621DL_REQUESTS_PER_SECOND %q: %w", rps, err)
		}
		s.RateLimit.RequestsPerSecond = val
	}

	if tagsFile := os.Getenv("E621DL_TAGS_FILE"); tagsFile != "" {
		s.Grab.TagsFile = tagsFile
	}
	if configFile := os.Getenv("E621DL_CONFIG_FILE"); configFile != "" {
		s.Storage.ConfigFile = configFile
	}
	if safeMode := os.Getenv("E621DL_SAFE_MODE"); safeMode != "" {
		s.Prompt.SafeMode = strings.ToLower(safeMode)
	}
	if notifEnabled := os.Getenv("E621DL_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		s.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}
	if logLevel := os.Getenv("E621DL_LOG_LEVEL"); logLevel != "" {
		s.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads settings from a YAML file
func (s *Settings) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findSettingsFile()
		if path == "" {
			return nil // No settings file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	return nil
}

// findSettingsFile searches for a settings file in standard locations
func findSettingsFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".e621dl.yaml",
		".e621dl.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "e621dl", "config.yaml"),
			filepath.Join(home, ".config", "e621dl", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the settings are valid
func (s *Settings) Validate() error {
	var errs []error

	if s.API.BaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	}
	if s.API.SafeBaseURL == "" {
		errs = append(errs, errors.New("api safe base URL is required"))
	}
	if s.API.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required by the API"))
	}
	if (s.API.Login == "") != (s.API.APIKey == "") {
		errs = append(errs, errors.New("login and api key must be set together"))
	}
	if s.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	if s.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if s.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if s.Grab.TagsFile == "" {
		errs = append(errs, errors.New("tags file is required"))
	}
	if s.Grab.PostsPerPage <= 0 || s.Grab.PostsPerPage > MaxPostsPerPage {
		errs = append(errs, fmt.Errorf("posts per page must be between 1 and %d", MaxPostsPerPage))
	}
	if s.Grab.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if s.Storage.ConfigFile == "" {
		errs = append(errs, errors.New("config file path is required"))
	}

	switch strings.ToLower(s.Prompt.SafeMode) {
	case SafeModeAsk, SafeModeAlways, SafeModeNever:
	default:
		errs = append(errs, fmt.Errorf("invalid safe mode %q", s.Prompt.SafeMode))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(s.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save writes the settings to a YAML file
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the settings
func (s *Settings) MergeCommandLineFlags(flags map[string]interface{}) {
	if tagsFile, ok := flags["tags-file"].(string); ok && tagsFile != "" {
		s.Grab.TagsFile = tagsFile
	}
	if configFile, ok := flags["config-file"].(string); ok && configFile != "" {
		s.Storage.ConfigFile = configFile
	}
	if safeMode, ok := flags["safe-mode"].(string); ok && safeMode != "" {
		s.Prompt.SafeMode = strings.ToLower(safeMode)
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		s.Grab.MaxPages = maxPages
	}
	if rps, ok := flags["requests-per-second"].(int); ok && rps > 0 {
		s.RateLimit.RequestsPerSecond = rps
	}
	if pause, ok := flags["pause-on-error"].(bool); ok {
		s.Prompt.PauseOnError = pause
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		s.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		s.Logging.Level = logLevel
	}
}

// Load loads settings from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Settings file > Defaults
func Load(settingsPath string, flags map[string]interface{}) (*Settings, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".e621dl.env"))
	}

	settings := DefaultSettings()

	if err := settings.LoadFromFile(settingsPath); err != nil {
		return nil, fmt.Errorf("failed to load settings file: %w", err)
	}

	if err := settings.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	settings.MergeCommandLineFlags(flags)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return settings, nil
}
