package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// Embedder turns text into a fixed-size vector. Semantic reports whether the
// vectors carry real meaning; token-hash stubs return false so the write
// policy can keep their output out of a shared corpus.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Semantic() bool
}

// hashDimensions keeps the stub vector small but large enough that unrelated
// texts rarely collide on every bucket.
const hashDimensions = 64

// HashEmbedder is a deterministic offline embedder. Tokens hash into buckets
// and the vector is L2-normalized, so identical texts embed identically and
// token overlap shows up as cosine similarity. It is not semantic; it exists
// so dedup and retrieval behave reproducibly without a network.
type HashEmbedder struct{}

// NewHashEmbedder returns the offline embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Embed implements Embedder.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := sum % hashDimensions

		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}

		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		vec[0] = 1

		return vec, nil
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}

	return vec, nil
}

// Dimensions implements Embedder.
func (e *HashEmbedder) Dimensions() int {
	return hashDimensions
}

// Semantic implements Embedder.
func (e *HashEmbedder) Semantic() bool {
	return false
}

// OpenAIEmbedder embeds through the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder backed by text-embedding-3-small.
func NewOpenAIEmbedder(apiKey string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "openai api key is required")
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      openai.SmallEmbedding3,
		dimensions: 1536,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEmbeddingFailed, "embedding request failed", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding response was empty")
	}

	return resp.Data[0].Embedding, nil
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Semantic implements Embedder.
func (e *OpenAIEmbedder) Semantic() bool {
	return true
}

// cosine returns the cosine similarity of two vectors, zero when either is
// degenerate or lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
