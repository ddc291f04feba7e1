package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
database:
  path: /tmp/desk.db
staff:
  group_id: -100
  main_admin_id: 900
matrix:
  homeserver: https://matrix.example.org
  user_id: "@deskbot:example.org"
  access_token: secret-token
  staff_room: "!staff:example.org"
logging:
  level: debug
  format: json
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/desk.db", cfg.Database.Path)
	assert.Equal(t, int64(-100), cfg.Staff.GroupID)
	assert.Equal(t, int64(900), cfg.Staff.MainAdminID)
	assert.Equal(t, "@deskbot:example.org", cfg.Matrix.UserID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DESK_TOKEN", "from-env")

	content := `
database:
  path: /tmp/desk.db
staff:
  group_id: -100
  main_admin_id: 900
matrix:
  homeserver: https://matrix.example.org
  user_id: "@deskbot:example.org"
  access_token: ${TEST_DESK_TOKEN}
  staff_room: "!staff:example.org"
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Matrix.AccessToken)
}

func TestUnsetEnvExpandsEmptyAndFailsValidation(t *testing.T) {
	content := `
database:
  path: /tmp/desk.db
staff:
  group_id: -100
  main_admin_id: 900
matrix:
  homeserver: https://matrix.example.org
  user_id: "@deskbot:example.org"
  access_token: ${DESK_SURELY_UNSET_VAR}
  staff_room: "!staff:example.org"
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing staff group", func(c *Config) { c.Staff.GroupID = 0 }, "staff.group_id"},
		{"missing main admin", func(c *Config) { c.Staff.MainAdminID = 0 }, "staff.main_admin_id"},
		{"missing homeserver", func(c *Config) { c.Matrix.Homeserver = "" }, "matrix.homeserver"},
		{"missing user id", func(c *Config) { c.Matrix.UserID = "" }, "matrix.user_id"},
		{"missing staff room", func(c *Config) { c.Matrix.StaffRoom = "" }, "matrix.staff_room"},
		{"negative relay capacity", func(c *Config) { c.Relay.Capacity = -1 }, "relay.capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
