// Package anthropic adapts the Anthropic Messages API to the canonical
// provider contract. The body encoder and decoders are exported because the
// Bedrock adapter reuses them for anthropic.* model ids, which speak the same
// wire format behind AWS transport and signing.
package anthropic
