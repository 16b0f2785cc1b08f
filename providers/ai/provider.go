package ai

import (
	"net/http"

	"github.com/modelmux/modelmux/internal/jsonschema"
	"github.com/modelmux/modelmux/internal/sse"
)

// Operations an adapter may be asked to translate options for or build
// requests against.
const (
	OperationChat      = "chat"
	OperationEmbedding = "embedding"
)

// Request is a provider-neutral HTTP request produced by an adapter's
// builder. Credentials are attached afterwards via Adapter.Decorate so
// builders never see keys.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest returns a POST request with a JSON content type.
func NewRequest(url string, body []byte) *Request {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &Request{Method: http.MethodPost, URL: url, Header: header, Body: body}
}

// ChatRequest is the canonical input to an adapter's chat request builder.
// Options carries the already-translated provider wire options.
type ChatRequest struct {
	Model          Model
	Context        *Context
	Tools          []Tool
	ToolChoice     string
	ResponseFormat *ResponseFormat
	Options        OptionMap
	Stream         bool
}

// ResponseFormat asks for schema-constrained output on providers with native
// json_schema support.
type ResponseFormat struct {
	Name   string
	Schema *jsonschema.Schema
	Strict bool
}

// Adapter is the contract every provider implements: translate caller
// options to wire options, encode the canonical context into a provider
// request, and decode provider responses and stream events back into the
// canonical shapes. Adapters never surface their wire types to callers.
type Adapter interface {
	// ID returns the provider id used in model specs and the registry.
	ID() string

	// Schema returns the extended option schema (core + provider-specific).
	Schema() OptionSchema

	// TranslateOptions reshapes validated options into provider wire
	// options for the given operation, returning warnings for anything
	// dropped or rewritten. Warnings never fail the call.
	TranslateOptions(operation string, model Model, opts OptionMap) (OptionMap, []string, error)

	// BuildChatRequest encodes a chat request, without credentials.
	BuildChatRequest(req ChatRequest) (*Request, error)

	// DecodeChatResponse decodes a non-streaming provider body.
	DecodeChatResponse(body []byte, model Model) (*Response, error)

	// NewStreamDecoder returns a decoder for one stream. Decoders may keep
	// per-stream state (tool-call indices, cumulative text), so a fresh one
	// is created per call.
	NewStreamDecoder(model Model) StreamDecoder

	// Decorate attaches the resolved credential to an outbound request.
	Decorate(req *Request, apiKey string) error
}

// StreamDecoder turns framed provider events into canonical chunks. The
// "[DONE]" sentinel is consumed by the coordinator and never reaches Decode.
type StreamDecoder interface {
	Decode(event sse.Event) ([]StreamChunk, error)
}

// EnvKeyed is implemented by adapters that export a default API-key
// environment variable, taking precedence over catalog metadata.
type EnvKeyed interface {
	DefaultEnvKey() string
}

// Framed is implemented by adapters whose streams are not plain text SSE.
type Framed interface {
	NewFramer() sse.Framer
}

// Embedder is implemented by adapters that support the embedding operation.
type Embedder interface {
	BuildEmbedRequest(model Model, input []string, opts OptionMap) (*Request, error)
	DecodeEmbedResponse(body []byte, model Model) (*EmbedResponse, error)
}
