package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/config"
)

func TestResolveCredentialPrecedence(t *testing.T) {
	t.Cleanup(config.Reset)
	t.Cleanup(func() { SetSecret("openai", "") })

	config.Set("openai_api_key", "from-config")
	t.Setenv("OPENAI_API_KEY", "from-env")
	SetSecret("openai", "from-secret")

	key, source, err := ResolveCredential("openai", "from-option")
	require.NoError(t, err)
	assert.Equal(t, "from-option", key)
	assert.Equal(t, CredentialFromOption, source)

	key, source, err = ResolveCredential("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
	assert.Equal(t, CredentialFromConfig, source)

	config.Reset()
	key, source, err = ResolveCredential("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Equal(t, CredentialFromEnv, source)

	t.Setenv("OPENAI_API_KEY", "")
	key, source, err = ResolveCredential("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "from-secret", key)
	assert.Equal(t, CredentialFromSecret, source)
}

func TestResolveCredentialChecksAllEnvNames(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	key, source, err := ResolveCredential("gemini", "")
	require.NoError(t, err)
	assert.Equal(t, "google-key", key)
	assert.Equal(t, CredentialFromEnv, source)

	// The primary name still wins when both are set.
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	key, _, err = ResolveCredential("gemini", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", key)
}

func TestResolveCredentialMissing(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")

	_, _, err := ResolveCredential("xai", "")
	require.Error(t, err)
	var canonical *Error
	require.ErrorAs(t, err, &canonical)
	assert.Equal(t, ErrValidation, canonical.Kind)
	assert.Contains(t, canonical.Reason, "XAI_API_KEY")
}

func TestSetSecretEmptyDeletes(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	SetSecret("groq", "secret")
	SetSecret("groq", "")

	_, _, err := ResolveCredential("groq", "")
	assert.Error(t, err)
}
