package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults when no file and no env", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		require.NoError(t, err)
		assert.Equal(t, Defaults(), cfg)
	})

	t.Run("file overrides defaults and env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "application.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
db:
  host: db.internal
  port: 6543
ledger:
  weeklylimit: 45
session:
  ttl: 30m
`), 0o600))
		t.Setenv("BENCHTRACK_DB_HOST", "db.from.env")
		t.Setenv("BENCHTRACK_SESSION_IDENTITYHEADER", "X-Auth-Login")
		t.Setenv("BENCHTRACK_CORS_ALLOWEDORIGINS", "https://a.example,https://b.example")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "db.from.env", cfg.Database.Host)
		assert.Equal(t, 6543, cfg.Database.Port)
		assert.Equal(t, 45, cfg.Ledger.WeeklyLimit)
		assert.Equal(t, 15, cfg.Ledger.EditWindowDays)
		assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
		assert.Equal(t, "X-Auth-Login", cfg.Session.IdentityHeader)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Cors.AllowedOrigins)
	})
}
