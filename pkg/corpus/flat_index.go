package corpus

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const (
	vectorMagic   = "CVIX"
	vectorVersion = uint32(1)
	headerSize    = 16
)

// FlatIndex is an exhaustive inner-product index over fixed-dimension
// vectors stored contiguously. Position i is the i-th added vector.
type FlatIndex struct {
	dim  int
	data []float32
}

// Hit is one vector position with its inner-product score.
type Hit struct {
	Position int
	Score    float64
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (f *FlatIndex) Dimension() int { return f.dim }

func (f *FlatIndex) Count() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vectors; each must match the index dimension.
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, index dimension %d", i, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Vector returns a copy of the vector stored at position i.
func (f *FlatIndex) Vector(i int) []float32 {
	out := make([]float32, f.dim)
	copy(out, f.data[i*f.dim:(i+1)*f.dim])
	return out
}

// Search returns the n highest-scoring positions ordered by score
// descending, then position ascending.
func (f *FlatIndex) Search(query []float32, n int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), f.dim)
	}
	count := f.Count()
	if n > count {
		n = count
	}
	if n <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, count)
	for i := 0; i < count; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var dot float64
		for j, q := range query {
			dot += float64(q) * float64(row[j])
		}
		hits[i] = Hit{Position: i, Score: dot}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	return hits[:n], nil
}

// WriteTo writes the binary vector file.
func (f *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	header := make([]byte, headerSize)
	copy(header[0:4], vectorMagic)
	binary.LittleEndian.PutUint32(header[4:8], vectorVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint32(header[12:16], uint32(f.Count()))

	n, err := w.Write(header)
	if err != nil {
		return int64(n), err
	}
	if err := binary.Write(w, binary.LittleEndian, f.data); err != nil {
		return int64(n), err
	}
	return int64(n) + int64(4*len(f.data)), nil
}

// ReadFlatIndex decodes a vector file of the given total size.
func ReadFlatIndex(r io.Reader, size int64) (*FlatIndex, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short vector header: %v", ErrCorruptIndex, err)
	}
	if string(header[0:4]) != vectorMagic {
		return nil, fmt.Errorf("%w: bad vector file magic %q", ErrCorruptIndex, header[0:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != vectorVersion {
		return nil, fmt.Errorf("%w: unsupported vector file version %d", ErrCorruptIndex, v)
	}
	dim := int64(binary.LittleEndian.Uint32(header[8:12]))
	count := int64(binary.LittleEndian.Uint32(header[12:16]))

	if want := headerSize + 4*dim*count; size >= 0 && want != size {
		return nil, fmt.Errorf("%w: vector file is %d bytes, header implies %d", ErrCorruptIndex, size, want)
	}

	data := make([]float32, dim*count)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("%w: vector data: %v", ErrCorruptIndex, err)
	}
	return &FlatIndex{dim: int(dim), data: data}, nil
}
