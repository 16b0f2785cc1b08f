// Package openai adapts the OpenAI Chat Completions and Embeddings APIs to
// the canonical provider contract. The same wire dialect is spoken by several
// hosted providers, so the package also registers adapters for Groq, xAI and
// OpenRouter that differ only in base URL, credentials and model quirks.
package openai
