package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	r := require.New(t)

	cfg, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	r.NoError(err)
	r.Equal(8080, cfg.Port)
	r.Equal(time.Hour, cfg.Media.TokenTTL)
	r.Equal(5*time.Minute, cfg.Mirror.SweepInterval)
	r.Equal(256, cfg.Coordinator.InboxSize)
	r.Equal(int64(50<<20), cfg.Storage.MaxUploadBytes)
	r.Equal(24*time.Hour, cfg.Storage.S3.PresignTTL)
	r.False(cfg.Storage.S3.Enabled())
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	r := require.New(t)

	// Given
	path := writeConfig(t, `
mode: debug
port: 9000
media:
  app_id: duet
  token_ttl: 30m
storage:
  s3:
    bucket: recordings
ratelimit:
  start_limit: 2
`)
	t.Setenv("DUET_MEDIA_APP_CERTIFICATE", "from-env")
	t.Setenv("DUET_MIRROR_IN_MEMORY", "true")

	// When
	cfg, err := Load([]string{"--config", path, "--port", "9100"})

	// Then
	r.NoError(err)
	r.Equal("debug", cfg.Mode)
	r.Equal(9100, cfg.Port)
	r.Equal("duet", cfg.Media.AppID)
	r.Equal("from-env", cfg.Media.AppCertificate)
	r.Equal(30*time.Minute, cfg.Media.TokenTTL)
	r.True(cfg.Mirror.InMemory)
	r.True(cfg.Storage.S3.Enabled())
	r.Equal(2, cfg.RateLimit.StartLimit)
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	require.Error(t, err)
}
