package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("DB_QUERY_TIMEOUT", "")
	t.Setenv("PHOTO_BASE_URL", "")
	t.Setenv("UPLOADS_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3030", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "uploads", cfg.Storage.PhotoBaseURL)
	assert.Equal(t, "./uploads", cfg.Storage.UploadsDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_QUERY_TIMEOUT", "2s")
	t.Setenv("DB_ALTER", "true")
	t.Setenv("PHOTO_BASE_URL", "/media")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.Database.Alter)
	assert.Equal(t, "/media", cfg.Storage.PhotoBaseURL)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_QUERY_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadToolingWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PG_DATABASE", "inspections")

	cfg, err := LoadTooling()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, "inspections", cfg.Database.Database)
}
