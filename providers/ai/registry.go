package ai

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/modelmux/modelmux/catalog"
)

// registryEntry pairs an adapter (nil for metadata-only providers) with its
// catalog metadata.
type registryEntry struct {
	adapter  Adapter
	metadata catalog.File
	hasMeta  bool
}

func (e registryEntry) implemented() bool {
	return e.adapter != nil
}

// registrySnapshot is the immutable provider map. Readers load it atomically;
// writers copy, mutate and replace, so reads never block.
type registrySnapshot struct {
	providers map[string]registryEntry
}

var (
	registryMu  sync.Mutex // serializes writers only
	registryPtr atomic.Pointer[registrySnapshot]
	catalogOnce sync.Once
)

func init() {
	registryPtr.Store(&registrySnapshot{providers: map[string]registryEntry{}})
}

// loadCatalog merges the embedded metadata files into the registry once,
// registering metadata-only providers without adapters. A catalog read
// failure is logged and leaves adapter registration intact.
func loadCatalog() {
	catalogOnce.Do(func() {
		files, err := catalog.LoadAll()
		if err != nil {
			slog.Error("failed to load model catalog", "error", err)
			return
		}
		registryMu.Lock()
		defer registryMu.Unlock()
		next := snapshotCopy()
		for id, file := range files {
			entry := next.providers[id]
			entry.metadata = file
			entry.hasMeta = true
			next.providers[id] = entry
		}
		registryPtr.Store(next)
	})
}

// snapshotCopy clones the current snapshot for copy-on-replace mutation.
// Callers must hold registryMu.
func snapshotCopy() *registrySnapshot {
	current := registryPtr.Load()
	next := &registrySnapshot{providers: make(map[string]registryEntry, len(current.providers))}
	for id, entry := range current.providers {
		next.providers[id] = entry
	}
	return next
}

// Register adds an adapter to the registry, keyed by its ID. Adapter
// packages call it from init. Re-registering the same adapter is a no-op; a
// conflicting adapter for an existing id is rejected and logged, leaving the
// registry unchanged.
func Register(adapter Adapter) {
	if adapter == nil || adapter.ID() == "" {
		slog.Error("refusing to register adapter without id")
		return
	}
	loadCatalog()

	registryMu.Lock()
	defer registryMu.Unlock()

	id := adapter.ID()
	current := registryPtr.Load()
	if existing, ok := current.providers[id]; ok && existing.adapter != nil {
		if existing.adapter == adapter {
			return
		}
		slog.Warn("rejecting conflicting adapter registration", "provider", id)
		return
	}

	next := snapshotCopy()
	entry := next.providers[id]
	entry.adapter = adapter
	next.providers[id] = entry
	registryPtr.Store(next)
}

// Get resolves a provider id to its adapter.
func Get(id string) (Adapter, error) {
	loadCatalog()
	entry, ok := registryPtr.Load().providers[id]
	if !ok {
		return nil, Errorf(ErrInvalidProvider, "provider_not_found: %q", id)
	}
	if !entry.implemented() {
		return nil, Errorf(ErrInvalidProvider, "provider %q is metadata-only and has no adapter", id)
	}
	return entry.adapter, nil
}

// GetModel resolves a provider id and model name to a Model with catalog
// metadata joined on, applying defaults for absent fields: text modalities
// both ways, capabilities all false except temperature.
func GetModel(id, name string) (Model, error) {
	loadCatalog()
	entry, ok := registryPtr.Load().providers[id]
	if !ok {
		return Model{}, Errorf(ErrInvalidProvider, "provider_not_found: %q", id)
	}

	model := Model{
		Provider:   id,
		Name:       name,
		MaxRetries: DefaultMaxRetries,
		Modalities: Modalities{Input: []string{"text"}, Output: []string{"text"}},
		Capabilities: Capabilities{
			Temperature: true,
		},
	}

	meta, found := entry.metadata.Model(name)
	if !found {
		if entry.hasMeta {
			return Model{}, Errorf(ErrInvalidModel, "model_not_found: %q has no model %q", id, name)
		}
		return model, nil
	}

	if meta.Limit != nil {
		model.Limit = Limit{Context: meta.Limit.Context, Output: meta.Limit.Output}
	}
	if meta.Modalities != nil {
		model.Modalities = Modalities{Input: meta.Modalities.Input, Output: meta.Modalities.Output}
	}
	if meta.Cost != nil {
		model.Cost = ModelCost{Input: meta.Cost.Input, Output: meta.Cost.Output}
	}
	model.Capabilities = Capabilities{
		Reasoning:        meta.Reasoning,
		ToolCall:         meta.ToolCall,
		Temperature:      meta.SupportsTemperature(),
		Attachment:       meta.Attachment,
		StructuredOutput: meta.StructuredOutput,
	}
	return model, nil
}

// ListProviders returns every known provider id, sorted.
func ListProviders() []string {
	loadCatalog()
	snapshot := registryPtr.Load()
	ids := make([]string, 0, len(snapshot.providers))
	for id := range snapshot.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListImplementedProviders returns provider ids that have an adapter.
func ListImplementedProviders() []string {
	return listWhere(true)
}

// ListMetadataOnlyProviders returns provider ids known only from catalog
// metadata.
func ListMetadataOnlyProviders() []string {
	return listWhere(false)
}

func listWhere(implemented bool) []string {
	loadCatalog()
	snapshot := registryPtr.Load()
	var ids []string
	for id, entry := range snapshot.providers {
		if entry.implemented() == implemented {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// EnvVarName returns the API-key environment variable for a provider:
// the adapter's DefaultEnvKey when exported, else the first catalog env
// entry, else UPPER(id)+"_API_KEY".
func EnvVarName(id string) string {
	loadCatalog()
	entry, ok := registryPtr.Load().providers[id]
	if ok {
		if keyed, isKeyed := entry.adapter.(EnvKeyed); isKeyed {
			if key := keyed.DefaultEnvKey(); key != "" {
				return key
			}
		}
		if len(entry.metadata.Provider.Env) > 0 {
			return entry.metadata.Provider.Env[0]
		}
	}
	return strings.ToUpper(id) + "_API_KEY"
}

// envVarNames returns every candidate env var for a provider, primary first.
func envVarNames(id string) []string {
	primary := EnvVarName(id)
	names := []string{primary}
	entry, ok := registryPtr.Load().providers[id]
	if ok {
		for _, name := range entry.metadata.Provider.Env {
			if name != primary {
				names = append(names, name)
			}
		}
	}
	return names
}

// resetRegistry restores an empty registry. Test helper.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registryPtr.Store(&registrySnapshot{providers: map[string]registryEntry{}})
	catalogOnce = sync.Once{}
}
