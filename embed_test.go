package modelmux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/modelmux/modelmux/providers/ai"
)

func embeddingsHandler(t *testing.T, vectors [][]float64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		if payload.Model == "" || len(payload.Input) == 0 {
			t.Errorf("request = %+v", payload)
		}

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(vectors))
		for i, v := range vectors {
			data[i] = item{Index: i, Embedding: v}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  data,
			"usage": map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		})
	})
}

func TestEmbed(t *testing.T) {
	id := newTestProvider(t, embeddingsHandler(t, [][]float64{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}))

	resp, err := Embed(context.Background(), id+":test-embedding", []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Embeddings) != 2 {
		t.Fatalf("embeddings = %d", len(resp.Embeddings))
	}
	if resp.Embeddings[1][0] != 0.4 {
		t.Errorf("embeddings out of order: %v", resp.Embeddings)
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	_, err := Embed(context.Background(), "openai:text-embedding-3-small", nil)
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrInvalidParameter {
		t.Fatalf("err = %v", err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	id := newTestProvider(t, embeddingsHandler(t, [][]float64{{0.1}}))

	_, err := Embed(context.Background(), id+":test-embedding", []string{"one", "two"})
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrAPIResponse {
		t.Fatalf("err = %v", err)
	}
}

func TestEmbedUnsupportedProvider(t *testing.T) {
	// The Anthropic adapter has no embeddings endpoint.
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	_, err := Embed(context.Background(), "anthropic:claude-3-5-haiku-20241022", []string{"hi"})
	if err == nil || !strings.Contains(err.Error(), "not_implemented") {
		t.Fatalf("err = %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero magnitude", []float64{0, 0}, []float64{1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrInvalidParameter {
		t.Fatalf("err = %v", err)
	}
}

func ExampleCosineSimilarity() {
	a := []float64{0.3, 0.8, 0.1}
	b := []float64{0.3, 0.8, 0.1}
	similarity, _ := CosineSimilarity(a, b)
	fmt.Printf("%.2f\n", similarity)
	// Output: 1.00
}
