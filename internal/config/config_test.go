package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Run("happy path - defaults without file or env", func(t *testing.T) {
		t.Setenv("DM_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))

		cfg := Load()
		assert.Equal(t, ":8080", cfg.ListenAddr)
		assert.Equal(t, "mysql", cfg.DBDriver)
		assert.True(t, cfg.DMEnabled)
		assert.Equal(t, 2*time.Minute, cfg.WithdrawWindow)
		assert.Equal(t, "dm-message-events", cfg.KafkaMessageTopic)
	})

	t.Run("yaml overrides defaults and env overrides yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		yml := "dbDriver: sqlite3\nmaxContentLength: 500\nwithdrawWindow: 30s\nallowStrangerMessage: false\n"
		require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
		t.Setenv("DM_CONFIG_FILE", path)
		t.Setenv("DM_MAX_CONTENT_LENGTH", "300")
		t.Setenv("DM_ENABLED", "off")

		cfg := Load()
		assert.Equal(t, "sqlite3", cfg.DBDriver)
		assert.Equal(t, 300, cfg.MaxContentLength)
		assert.Equal(t, 30*time.Second, cfg.WithdrawWindow)
		assert.False(t, cfg.AllowStrangerMessage)
		assert.False(t, cfg.DMEnabled)
	})

	t.Run("invalid env values are ignored", func(t *testing.T) {
		t.Setenv("DM_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))
		t.Setenv("DM_SEND_QPS", "fast")
		t.Setenv("DM_REPAIR_INTERVAL", "soon")

		cfg := Load()
		assert.Equal(t, 5, cfg.SendQPS)
		assert.Equal(t, 5*time.Minute, cfg.RepairInterval)
	})
}
