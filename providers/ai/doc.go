// Package ai defines the provider-neutral core of modelmux: the canonical
// Model/Context/Message/Response data model, the Adapter contract every
// provider implements, the provider registry, credential resolution, the
// option translator, the canonical error taxonomy, and the streaming engine
// (stream coordinator, chunk sequence, terminal metadata future).
//
// Adapters live in subpackages (openai, anthropic, gemini, bedrock) and
// register themselves in init. Callers normally go through the modelmux
// facade rather than this package directly.
package ai
