package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashingDim = 384

// HashingClient is a local bag-of-words embedder: each token is hashed into one
// of dim buckets and the counts are L2-normalized. No network, fully deterministic.
// Text without tokens maps to the unit vector on bucket 0, never to all zeros.
type HashingClient struct {
	dim int
}

// NewHashingClient returns a hashing embedder with dim buckets (384 when dim <= 0).
func NewHashingClient(dim int) *HashingClient {
	if dim <= 0 {
		dim = defaultHashingDim
	}
	return &HashingClient{dim: dim}
}

func (h *HashingClient) ModelVersion() string {
	return fmt.Sprintf("hashing-fnv32a-%d", h.dim)
}

func (h *HashingClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashingClient) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashingClient) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(tokens) == 0 {
		vec[0] = 1
		return vec
	}
	for _, tok := range tokens {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		vec[hasher.Sum32()%uint32(h.dim)] += 1.0
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
