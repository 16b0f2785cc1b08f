package ai

import (
	"os"
	"sync"

	"github.com/modelmux/modelmux/config"
)

// CredentialSource records where a resolved API key came from.
type CredentialSource string

const (
	CredentialFromOption CredentialSource = "option"
	CredentialFromConfig CredentialSource = "config"
	CredentialFromEnv    CredentialSource = "env"
	CredentialFromSecret CredentialSource = "secret_store"
)

var (
	secretsMu sync.RWMutex
	secrets   = map[string]string{}
)

// SetSecret stores an API key in the in-memory secret store, the last
// resort of credential resolution. An empty key removes the entry.
func SetSecret(providerID, apiKey string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if apiKey == "" {
		delete(secrets, providerID)
		return
	}
	secrets[providerID] = apiKey
}

// ResolveCredential locates the API key for a provider. Precedence: the
// per-call option, process configuration ("{provider}_api_key"), environment
// variables known to the registry, then the secret store. Empty strings are
// treated as missing and the next source is tried. Keys are never logged.
func ResolveCredential(providerID, apiKeyOption string) (string, CredentialSource, error) {
	if apiKeyOption != "" {
		return apiKeyOption, CredentialFromOption, nil
	}
	if key := config.Get(providerID + "_api_key"); key != "" {
		return key, CredentialFromConfig, nil
	}
	for _, envVar := range envVarNames(providerID) {
		if key := os.Getenv(envVar); key != "" {
			return key, CredentialFromEnv, nil
		}
	}
	secretsMu.RLock()
	key := secrets[providerID]
	secretsMu.RUnlock()
	if key != "" {
		return key, CredentialFromSecret, nil
	}
	return "", "", Errorf(ErrValidation,
		"no API key found for provider %q (set the %s environment variable, the %s_api_key config key, or pass one per call)",
		providerID, EnvVarName(providerID), providerID)
}
