// ABOUTME: Configuration loading and parsing for desk-gateway
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete desk-gateway configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Staff    StaffConfig    `yaml:"staff"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	Contacts ContactsConfig `yaml:"contacts"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StaffConfig identifies the staff group and the seeded main admin
type StaffConfig struct {
	GroupID     int64 `yaml:"group_id"`
	MainAdminID int64 `yaml:"main_admin_id"`
}

// MatrixConfig holds Matrix transport configuration
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
	// RecoveryKey unlocks encrypted rooms; E2EE is skipped when empty
	RecoveryKey string `yaml:"recovery_key"`
	// StaffRoom is the Matrix room relayed messages land in. Its members
	// are the staff side of every conversation.
	StaffRoom string `yaml:"staff_room"`
	// StateDir holds the crypto store; defaults next to the database
	StateDir string `yaml:"state_dir"`
}

// ContactsConfig points at the TOML contacts directory shown to users
type ContactsConfig struct {
	Path string `yaml:"path"`
}

// RelayConfig bounds the staff-reply correlation table
type RelayConfig struct {
	Capacity int `yaml:"capacity"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure
// encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Staff.GroupID == 0 {
		return fmt.Errorf("staff.group_id is required")
	}
	if c.Staff.MainAdminID == 0 {
		return fmt.Errorf("staff.main_admin_id is required")
	}

	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if c.Matrix.StaffRoom == "" {
		return fmt.Errorf("matrix.staff_room is required")
	}

	if c.Relay.Capacity < 0 {
		return fmt.Errorf("relay.capacity must not be negative")
	}

	return nil
}
