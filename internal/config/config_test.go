package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/config"
)

func TestLoadSecretFromEnvOnly(t *testing.T) {
	// No config file exists in the test working directory; the secret
	// must still arrive via the environment alone.
	t.Setenv("EUSUITE_SECRET", "env-secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Secret)

	// Defaults stay intact around it.
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "call_token", cfg.AuthCookie)
	assert.Equal(t, "webrtc", cfg.Engine)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("EUSUITE_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("EUSUITE_SECRET", "s")
	t.Setenv("EUSUITE_PORT", "9999")
	t.Setenv("EUSUITE_ENGINE", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "memory", cfg.Engine)
}
