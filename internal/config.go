package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mimir/internal/embed"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Indexing  IndexingConfig    `yaml:"indexing"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Indexing.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory. An empty path
// means no session is started at boot; indexing is driven through the API.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EmbeddingConfig selects the embedding provider.
//
//   - "static" (default): deterministic local embeddings, no external service.
//   - "ollama": embeddings from an Ollama server; Host and Model apply.
//   - "disabled": no embeddings, semantic search returns empty results.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = embed.ProviderStatic
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(embed.ProviderStatic, embed.ProviderOllama, embed.ProviderDisabled)),
		validation.Field(&c.Dimensions, validation.Min(0)),
	)
}

// EmbedConfig converts to the embed package's provider config.
func (c *EmbeddingConfig) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:   c.Provider,
		Host:       c.Host,
		Model:      c.Model,
		Dimensions: c.Dimensions,
	}
}

// IndexingConfig tunes the indexing pipeline.
type IndexingConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Validate validates the indexing configuration.
func (c *IndexingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceMS, validation.Min(0)),
	)
}

// DebounceWindow returns the change notification quiet period.
func (c *IndexingConfig) DebounceWindow() time.Duration {
	if c.DebounceMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
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
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./mimir.db",
		},
		Embedding: EmbeddingConfig{
			Provider: embed.ProviderStatic,
		},
		Indexing: IndexingConfig{
			DebounceMS: 100,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
