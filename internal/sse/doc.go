// Package sse recovers discrete provider events from a raw streaming HTTP
// body. Three frame grammars are supported: text Server-Sent Events (the
// OpenAI/Anthropic convention), a JSON-array fallback used by some Gemini
// configurations, and the AWS binary event stream used by Bedrock.
//
// All framers are chunk-boundary safe: bytes may arrive in any split,
// including one byte at a time, and the emitted event sequence is identical
// to feeding the whole body at once. Unconsumed trailing bytes are retained
// between Feed calls.
package sse
