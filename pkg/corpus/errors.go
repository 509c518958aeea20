package corpus

import "errors"

var (
	// ErrIndexNotBuilt is returned by searches against an index that was
	// never built or loaded.
	ErrIndexNotBuilt = errors.New("corpus index not built")

	// ErrIndexBuild is returned when no record survives text extraction.
	ErrIndexBuild = errors.New("corpus index build failed")

	// ErrCorruptIndex is returned when the vector file and the metadata
	// file disagree. The loader never repairs this state.
	ErrCorruptIndex = errors.New("corpus index files are corrupt")

	// ErrModelMismatch is returned by Load when the files were built with a
	// different embedding model or width than the index's provider.
	ErrModelMismatch = errors.New("corpus index built with a different embedding model")
)
