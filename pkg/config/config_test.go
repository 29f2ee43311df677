package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/writer")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.AllowSharedOnlyMessages)
	assert.Equal(t, 10, cfg.TopChatLimit)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.OAuthEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/writer")
	t.Setenv("PORT", "3000")
	t.Setenv("MESSAGES_ALLOW_SHARED_ONLY", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://writer.example.com/")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.False(t, cfg.AllowSharedOnlyMessages)
	assert.Equal(t, "https://writer.example.com", cfg.PublicBaseURL)
	assert.True(t, cfg.OAuthEnabled())
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRejectsDevSecrets(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/writer")
	t.Setenv("ENV", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")

	t.Setenv("SESSION_SECRET", "a-real-secret")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
