package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:6000", c.ServerAddr)
	assert.Equal(t, "chat_history.db", c.HistoryPath)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "127.0.0.1:6000", cfg.ServerAddr)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeFile(t, "cfg.json", `{"server_addr":"file:1","history_path":"file.db"}`)
	os.Args = []string{"cmd", "-c", path, "-a", "flag:2"}

	cfg := LoadConfig()

	assert.Equal(t, "flag:2", cfg.ServerAddr)
	assert.Equal(t, "file.db", cfg.HistoryPath)
}
