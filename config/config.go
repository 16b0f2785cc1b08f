// Package config holds process-wide library configuration: API keys and
// defaults loaded from an optional YAML file, a .env file, and MODELMUX_
// environment variables. The credential resolver consults it with keys like
// "openai_api_key".
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override configuration values:
// MODELMUX_OPENAI_API_KEY becomes the key "openai_api_key".
const EnvPrefix = "MODELMUX_"

var (
	mu    sync.RWMutex
	store = koanf.New(".")
)

// Load populates the configuration. An optional YAML file is read first,
// then MODELMUX_ environment variables are layered on top. A .env file in
// the working directory is loaded into the process environment beforehand
// and is ignored when absent. Load replaces any previous configuration.
func Load(paths ...string) error {
	_ = godotenv.Load()

	k := koanf.New(".")
	for _, path := range paths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Keys stay flat: underscores are preserved so "openai_api_key" style
	// lookups work for both YAML keys and env overrides.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return fmt.Errorf("loading env vars: %w", err)
	}

	mu.Lock()
	store = k
	mu.Unlock()
	return nil
}

// Get returns the string value for key, or "" when unset. Values of the form
// ${VAR_NAME} are expanded from the process environment, so config files can
// reference secrets without embedding them.
func Get(key string) string {
	mu.RLock()
	value := store.String(strings.ToLower(key))
	mu.RUnlock()

	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}

// Set writes a single configuration value, overriding loaded sources.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()
	return store.Set(strings.ToLower(key), value)
}

// Exists reports whether key has a value.
func Exists(key string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return store.Exists(strings.ToLower(key))
}

// Reset discards all configuration. Intended for tests.
func Reset() {
	mu.Lock()
	store = koanf.New(".")
	mu.Unlock()
}
