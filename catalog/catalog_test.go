package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAll(t *testing.T) {
	files, err := LoadAll()
	require.NoError(t, err)

	for _, provider := range []string{"openai", "anthropic", "gemini", "groq", "xai", "openrouter", "bedrock", "deepseek", "mistral"} {
		file, ok := files[provider]
		require.True(t, ok, "missing provider %s", provider)
		assert.NotEmpty(t, file.Provider.Env, "provider %s has no env vars", provider)
		assert.NotEmpty(t, file.Models, "provider %s has no models", provider)
		for _, m := range file.Models {
			assert.NotEmpty(t, m.ID, "provider %s has a model without id", provider)
		}
	}
}

func TestModelLookup(t *testing.T) {
	files, err := LoadAll()
	require.NoError(t, err)

	model, ok := files["anthropic"].Model("claude-3-haiku-20240307")
	require.True(t, ok)
	require.NotNil(t, model.Limit)
	assert.Equal(t, 200000, model.Limit.Context)
	assert.Equal(t, 4096, model.Limit.Output)
	require.NotNil(t, model.Cost)
	assert.InDelta(t, 0.00000025, model.Cost.Input, 1e-12)
	assert.True(t, model.ToolCall)

	_, ok = files["anthropic"].Model("claude-nonexistent")
	assert.False(t, ok)
}

func TestTemperatureDefault(t *testing.T) {
	files, err := LoadAll()
	require.NoError(t, err)

	haiku, ok := files["anthropic"].Model("claude-3-haiku-20240307")
	require.True(t, ok)
	assert.True(t, haiku.SupportsTemperature(), "absent temperature flag defaults to true")

	o1, ok := files["openai"].Model("o1")
	require.True(t, ok)
	assert.False(t, o1.SupportsTemperature())
}

func TestEnvVarOrder(t *testing.T) {
	files, err := LoadAll()
	require.NoError(t, err)

	gemini := files["gemini"]
	require.Len(t, gemini.Provider.Env, 2)
	assert.Equal(t, "GEMINI_API_KEY", gemini.Provider.Env[0])
	assert.Equal(t, "GOOGLE_API_KEY", gemini.Provider.Env[1])
}

func TestProviderID(t *testing.T) {
	assert.Equal(t, "openai", ProviderID("openai.json"))
	assert.Equal(t, "amazon_bedrock", ProviderID("amazon-bedrock.json"))
	assert.Equal(t, "xai", ProviderID("data/xai.json"))
}
