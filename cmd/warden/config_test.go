package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSession(t *testing.T) {
	assert := assert.New(t)

	raw, err := loadSession(writeFile(t, "session.json", "  [{\"key\":\"c_user\",\"value\":\"100\"}]\n"))
	assert.NoError(err)
	assert.JSONEq(`[{"key":"c_user","value":"100"}]`, string(raw))

	var cerr *ConfigError
	_, err = loadSession(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(errors.As(err, &cerr))
	assert.Equal("session-file", cerr.Field)
	assert.ErrorIs(err, os.ErrNotExist)

	_, err = loadSession(writeFile(t, "empty.json", "\n"))
	assert.True(errors.As(err, &cerr))

	_, err = loadSession(writeFile(t, "corrupt.json", "{not json"))
	assert.True(errors.As(err, &cerr))
}

func TestLoadAdminID(t *testing.T) {
	assert := assert.New(t)

	id, err := loadAdminID("100", "")
	assert.NoError(err)
	assert.Equal("100", id)

	// file wins over the flag
	id, err = loadAdminID("100", writeFile(t, "admin.txt", "200\n"))
	assert.NoError(err)
	assert.Equal("200", id)

	// blank file falls back to the flag
	id, err = loadAdminID("100", writeFile(t, "blank.txt", "  \n"))
	assert.NoError(err)
	assert.Equal("100", id)

	var cerr *ConfigError
	_, err = loadAdminID("", "")
	assert.True(errors.As(err, &cerr))
	assert.Equal("admin-id", cerr.Field)

	_, err = loadAdminID("100", filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(errors.As(err, &cerr))
	assert.Equal("admin-id-file", cerr.Field)
}

func TestConfigLogger(t *testing.T) {
	assert := assert.New(t)

	_, err := configLogger("debug")
	assert.NoError(err)
	_, err = configLogger("loud")
	var cerr *ConfigError
	assert.True(errors.As(err, &cerr))
}

func TestNewServer(t *testing.T) {
	assert := assert.New(t)

	_, err := NewServer(Config{BridgeHost: "ftp://localhost:8090"})
	var cerr *ConfigError
	assert.True(errors.As(err, &cerr))

	srv, err := NewServer(Config{
		BridgeHost:   "ws://localhost:8090",
		AdminID:      "100",
		SnapshotPath: filepath.Join(t.TempDir(), "policy.json"),
	})
	assert.NoError(err)
	assert.Equal("100", srv.engine.AdminID)
	assert.Nil(srv.engine.Notifier)
}
