package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"clinical-assistant-be/pkg/textmatch"
)

// DefaultHashDimension matches the width of the sentence-transformer
// models the corpus was first indexed with.
const DefaultHashDimension = 384

// HashProvider is a deterministic bag-of-words embedder using signed
// feature hashing over normalized unigrams and bigrams. It needs no model
// server and is the offline default.
type HashProvider struct {
	dimension int
}

func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashProvider{dimension: dimension}
}

func (p *HashProvider) Name() string {
	return fmt.Sprintf("hash/%d", p.dimension)
}

func (p *HashProvider) Dimension() int {
	return p.dimension
}

func (p *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embedOne(t)
	}
	return out, nil
}

func (p *HashProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dimension)
	words := strings.Fields(textmatch.Normalize(text))
	for i, w := range words {
		p.add(vec, w, 1.0)
		if i > 0 {
			p.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	return vec
}

func (p *HashProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimension))
	if (sum>>63)&1 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
