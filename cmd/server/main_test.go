package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbigger/aiamp/internal/app"
)

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "  super-secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "super-secret", cfg.Auth.JWT.Secret)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestLoadApplicationConfigFromDirectory(t *testing.T) {
	dir := t.TempDir()
	configYAML := []byte("server:\n  port: 9100\n  base_url: https://amp.example.com\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), configYAML, 0o600))

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "https://amp.example.com", cfg.Server.BaseURL)
}

func TestLoadApplicationConfigFromFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9200\n"), 0o600))

	cfg, err := loadApplicationConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.Server.Port)
}
