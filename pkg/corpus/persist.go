package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"clinical-assistant-be/pkg/embedding"

	"github.com/vmihailenco/msgpack/v5"
)

const metadataVersion = 1

type metadataDoc struct {
	Version    int          `msgpack:"version"`
	Dimension  int          `msgpack:"dimension"`
	Model      string       `msgpack:"model"`
	Cases      []CaseRecord `msgpack:"cases"`
	Embeddings [][]float32  `msgpack:"embeddings"`
}

// Save writes the vector file and the metadata file. Each file is written
// to a temporary sibling and renamed into place.
func (idx *Index) Save(indexPath, metadataPath string) error {
	if !idx.built() {
		return ErrIndexNotBuilt
	}

	if err := writeAtomic(indexPath, func(f *os.File) error {
		_, err := idx.vectors.WriteTo(f)
		return err
	}); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}

	doc := metadataDoc{
		Version:    metadataVersion,
		Dimension:  idx.vectors.Dimension(),
		Model:      idx.model,
		Cases:      idx.records,
		Embeddings: make([][]float32, len(idx.records)),
	}
	for i := range idx.records {
		doc.Embeddings[i] = idx.records[i].Embedding
	}

	if err := writeAtomic(metadataPath, func(f *os.File) error {
		return msgpack.NewEncoder(f).Encode(&doc)
	}); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}

	idx.logger.Info(module, "Index saved", map[string]interface{}{
		"index_path":    indexPath,
		"metadata_path": metadataPath,
		"cases":         len(idx.records),
	})
	return nil
}

// Load replaces the index contents with the two files. Nothing is replaced
// unless both files are readable and consistent with each other.
func (idx *Index) Load(indexPath, metadataPath string) error {
	flat, err := readVectorFile(indexPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("read metadata file: %w", err)
	}
	var doc metadataDoc
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: decode metadata: %v", ErrCorruptIndex, err)
	}

	if doc.Dimension != flat.Dimension() {
		return fmt.Errorf("%w: metadata dimension %d, vector file dimension %d", ErrCorruptIndex, doc.Dimension, flat.Dimension())
	}
	if len(doc.Cases) != flat.Count() || len(doc.Embeddings) != flat.Count() {
		return fmt.Errorf("%w: %d cases, %d embeddings, %d vectors",
			ErrCorruptIndex, len(doc.Cases), len(doc.Embeddings), flat.Count())
	}
	if err := idx.checkProvider(doc.Model, doc.Dimension); err != nil {
		return err
	}
	for i := range doc.Cases {
		if len(doc.Embeddings[i]) != doc.Dimension {
			return fmt.Errorf("%w: embedding %d has dimension %d", ErrCorruptIndex, i, len(doc.Embeddings[i]))
		}
		doc.Cases[i].Embedding = doc.Embeddings[i]
	}

	idx.install(doc.Cases, flat, doc.Model)
	idx.logger.Info(module, "Index loaded", map[string]interface{}{
		"cases":     flat.Count(),
		"dimension": flat.Dimension(),
		"model":     doc.Model,
	})
	return nil
}

// checkProvider rejects files whose queries would be embedded by a different
// model than the one that embedded the cases.
func (idx *Index) checkProvider(model string, dimension int) error {
	if idx.provider == nil {
		return nil
	}
	if name := idx.provider.Name(); model != name {
		return fmt.Errorf("%w: %w: files use %q, provider is %q", ErrCorruptIndex, ErrModelMismatch, model, name)
	}
	if d, ok := idx.provider.(embedding.Dimensioned); ok && d.Dimension() != dimension {
		return fmt.Errorf("%w: %w: files have dimension %d, provider has %d", ErrCorruptIndex, ErrModelMismatch, dimension, d.Dimension())
	}
	return nil
}

// IndexFilesExist reports whether both index files are present.
func IndexFilesExist(indexPath, metadataPath string) bool {
	for _, p := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return false
		}
	}
	return true
}

func readVectorFile(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat vector file: %w", err)
	}
	return ReadFlatIndex(f, info.Size())
}

func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
