// ABOUTME: Configuration loading and parsing for the academa portal
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete portal configuration.
type Config struct {
	Server       ServerConfig                   `yaml:"server"`
	ProfileStore ProfileStoreConfig             `yaml:"profilestore"`
	Identity     IdentityConfig                 `yaml:"identity"`
	Sessions     SessionsConfig                 `yaml:"sessions"`
	Guard        GuardConfig                    `yaml:"guard"`
	OAuth        map[string]OAuthProviderConfig `yaml:"oauth"`
	Logging      LoggingConfig                  `yaml:"logging"`
}

// ServerConfig holds the portal HTTP address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// ProfileStoreConfig holds how the portal reaches the ProfileStore service
// and, for the bundled service binary, where its database lives.
type ProfileStoreConfig struct {
	BaseURL      string `yaml:"base_url"`
	HTTPAddr     string `yaml:"http_addr"`
	DatabasePath string `yaml:"database_path"`
}

// IdentityConfig holds local identity-provider settings.
type IdentityConfig struct {
	// BcryptCost of 0 selects the library default.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// SessionsConfig holds browser-session settings.
type SessionsConfig struct {
	// TokenSecret signs the browser-session cookie tokens.
	TokenSecret string `yaml:"token_secret"`

	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// GuardConfig holds the protected-path set and redirect destinations.
type GuardConfig struct {
	// ProtectedPaths require a signed-in identity. A trailing "/*" protects
	// the whole subtree.
	ProtectedPaths []string `yaml:"protected_paths"`
	SignInPath     string   `yaml:"sign_in_path"`
	DefaultPath    string   `yaml:"default_path"`
}

// OAuthProviderConfig holds one interactive sign-in provider.
type OAuthProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in the well-known destinations and protected set when
// the file leaves them out.
func applyDefaults(cfg *Config) {
	if cfg.Guard.SignInPath == "" {
		cfg.Guard.SignInPath = "/login"
	}
	if cfg.Guard.DefaultPath == "" {
		cfg.Guard.DefaultPath = "/"
	}
	if len(cfg.Guard.ProtectedPaths) == 0 {
		cfg.Guard.ProtectedPaths = []string{"/profile", "/my-college", "/colleges/*"}
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = 24 * time.Hour
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.ProfileStore.BaseURL == "" {
		return fmt.Errorf("profilestore.base_url is required")
	}
	if c.Sessions.TokenSecret == "" {
		return fmt.Errorf("sessions.token_secret is required")
	}

	for kind, p := range c.OAuth {
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("oauth.%s: client_id and client_secret are required", kind)
		}
		if p.AuthURL == "" || p.TokenURL == "" || p.UserInfoURL == "" {
			return fmt.Errorf("oauth.%s: auth_url, token_url and userinfo_url are required", kind)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.TTLRaw != "" {
		cfg.Sessions.TTL, err = time.ParseDuration(cfg.Sessions.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.ttl %q: %w", cfg.Sessions.TTLRaw, err)
		}
	}

	return nil
}
