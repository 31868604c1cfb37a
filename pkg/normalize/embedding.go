package normalize

import (
	"hash/fnv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// EmbeddingDimension is the fixed process-wide dimension required by
// spec §3 ("embedding dimension is fixed process-wide").
const EmbeddingDimension = 256

// Embedder implements C4: a deterministic dense-vector encoder of
// cleaned title+description. It hashes character trigrams into a
// fixed-width bag-of-features vector and L2-normalizes it, so cosine
// similarity behaves like a smoothed n-gram overlap measure. This stands
// in for a trained sentence-embedding model (the original used
// all-MiniLM-L6-v2) since no such model ships in the retrieved example
// corpus; it satisfies the same contract spec §4.4 requires: deterministic,
// fixed-dimension, batchable, pairwise cosine-comparable.
type Embedder struct {
	dimension int
}

// NewEmbedder builds an embedder with the given fixed dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = EmbeddingDimension
	}
	return &Embedder{dimension: dimension}
}

// Encode maps "cleanedTitle | cleanedDescription" to a unit-scaled dense
// vector, per spec §4.4.
func (e *Embedder) Encode(cleanedTitle, cleanedDescription string) []float32 {
	text := cleanedTitle + " | " + cleanedDescription
	vec := make([]float64, e.dimension)

	for _, gram := range trigrams(text) {
		h := fnv.New32a()
		h.Write([]byte(gram))
		idx := int(h.Sum32()) % e.dimension
		if idx < 0 {
			idx += e.dimension
		}
		vec[idx]++
	}

	norm := floats.Norm(vec, 2)
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// EncodeBatch encodes multiple (title, description) pairs in one call,
// matching C4's "supports batch encoding" requirement.
func (e *Embedder) EncodeBatch(pairs [][2]string) [][]float32 {
	out := make([][]float32, len(pairs))
	for i, p := range pairs {
		out[i] = e.Encode(p[0], p[1])
	}
	return out
}

func trigrams(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 0 {
		return nil
	}
	padded := "  " + s + "  "
	var grams []string
	for i := 0; i+3 <= len(padded); i++ {
		grams = append(grams, padded[i:i+3])
	}
	return grams
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, returning 0 if either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i := range a {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}
	dot := floats.Dot(af, bf)
	na := floats.Norm(af, 2)
	nb := floats.Norm(bf, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}
