// Package bedrock adapts AWS Bedrock to the canonical provider contract.
//
// Bedrock exposes two request shapes. Anthropic model ids (anthropic.* or the
// region-prefixed us.anthropic.* form) go through the native invoke path and
// reuse the Messages API codec from the anthropic package with the model name
// moved into the URL. Every other model id goes through the Converse API.
// Both paths stream over the binary vnd.amazon.eventstream framing and are
// authenticated with a SigV4 signature computed over the canonical request.
package bedrock
