package modelmux

import (
	"context"
	"math"

	"github.com/modelmux/modelmux/providers/ai"
)

// Embed turns input texts into embedding vectors, one per input, in input
// order. Only providers whose adapter supports the embedding operation
// accept it.
func Embed(ctx context.Context, modelSpec string, input []string, options ...Option) (*ai.EmbedResponse, error) {
	if len(input) == 0 {
		return nil, ai.Errorf(ai.ErrInvalidParameter, "embedding input is empty")
	}
	co := applyOptions(options)

	adapter, model, translated, _, err := prepare(modelSpec, co, ai.OperationEmbedding)
	if err != nil {
		return nil, err
	}
	embedder, ok := adapter.(ai.Embedder)
	if !ok {
		return nil, ai.Errorf(ai.ErrAPIResponse, "not_implemented: provider %q does not support embeddings", model.Provider)
	}

	req, err := embedder.BuildEmbedRequest(model, input, translated)
	if err != nil {
		return nil, err
	}
	key, _, err := ai.ResolveCredential(model.Provider, co.opts.APIKey)
	if err != nil {
		return nil, err
	}
	if err := adapter.Decorate(req, key); err != nil {
		return nil, err
	}

	if co.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, co.opts.Timeout)
		defer cancel()
	}
	body, err := ai.Do(ctx, co.client, req, model.MaxRetries)
	if err != nil {
		return nil, err
	}
	resp, err := embedder.DecodeEmbedResponse(body, model)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(input) {
		return nil, ai.Errorf(ai.ErrAPIResponse, "provider returned %d embeddings for %d inputs", len(resp.Embeddings), len(input))
	}
	return resp, nil
}

// MustEmbed is Embed that panics on error.
func MustEmbed(ctx context.Context, modelSpec string, input []string, options ...Option) *ai.EmbedResponse {
	resp, err := Embed(ctx, modelSpec, input, options...)
	if err != nil {
		panic(err)
	}
	return resp
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Vectors of different lengths are an error; a zero-magnitude vector yields
// a similarity of 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ai.Errorf(ai.ErrInvalidParameter, "embedding lengths differ: %d vs %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
