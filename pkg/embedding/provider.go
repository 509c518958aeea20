package embedding

import (
	"context"
	"math"
)

// Provider turns texts into fixed-length vectors. Implementations must
// return exactly one vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the model, persisted alongside an index so a reload
	// can detect a provider switch.
	Name() string
}

// NormalizeL2 scales vec to unit length in place and returns it.
// A zero vector is returned unchanged.
func NormalizeL2(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	for i, v := range vec {
		vec[i] = float32(float64(v) / magnitude)
	}
	return vec
}

// Dimensioned is implemented by providers whose output width is known
// without calling the model.
type Dimensioned interface {
	Dimension() int
}
