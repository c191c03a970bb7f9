package fallback

import (
	"hash/fnv"
	"math"
)

// DefaultDimensions matches text-embedding-004.
const DefaultDimensions = 768

// Embedding returns a deterministic hashed bag-of-words vector of length
// dims, L2-normalized. Texts sharing words score a positive cosine
// similarity. Text without words yields the zero vector.
func (s *Synthesizer) Embedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	vec := make([]float32, dims)

	for _, tok := range tokens(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(dims))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
