package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	pkgconfig "github.com/starford/plantcare/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Species   SpeciesConfig     `yaml:"species"`
	Reminders RemindersConfig   `yaml:"reminders"`
	Journal   JournalConfig     `yaml:"journal"`
	Inbox     InboxConfig       `yaml:"inbox"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Sections lists the top-level YAML blocks in validation order.
func (c *Config) Sections() []pkgconfig.Section {
	return []pkgconfig.Section{
		{Name: "app", Validator: &c.App},
		{Name: "store", Validator: &c.Store},
		{Name: "species", Validator: &c.Species},
		{Name: "reminders", Validator: &c.Reminders},
		{Name: "journal", Validator: &c.Journal},
		{Name: "inbox", Validator: &c.Inbox},
		{Name: "auth", Validator: &c.Auth},
	}
}

// Validate validates the configuration. Failures are *pkgconfig.SectionError
// naming the YAML block.
func (c *Config) Validate() error {
	return pkgconfig.ValidateSections(c.Sections()...)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// EventThrottle is the minimum gap between garden.updated events.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// StoreConfig points at the remote plant store.
type StoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SpeciesConfig configures the species metadata service. An empty APIKey
// is valid: lookups then fall back to the default interval.
type SpeciesConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	RateLimitMS int           `yaml:"rate_limit_ms"`
}

// Validate validates the species configuration.
func (c *SpeciesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RateLimitMS, validation.Min(0)),
	)
}

// RemindersConfig configures the periodic watering check.
type RemindersConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the reminders configuration.
func (c *RemindersConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
	)
}

// JournalConfig holds the SQLite journal location.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig configures the photo inbox folder.
type InboxConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Settle  time.Duration `yaml:"settle"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the REST API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:          8080,
				EventThrottle: 2 * time.Second,
			},
		},
		Store: StoreConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 15 * time.Second,
		},
		Species: SpeciesConfig{
			BaseURL:     "https://perenual.com/api",
			Timeout:     10 * time.Second,
			CacheTTL:    24 * time.Hour,
			RateLimitMS: 250,
		},
		Reminders: RemindersConfig{
			Interval: time.Minute,
		},
		Journal: JournalConfig{
			Path: "./plantcare.db",
		},
		Inbox: InboxConfig{
			Enabled: false,
			Path:    "./inbox",
			Settle:  500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
