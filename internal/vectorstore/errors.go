package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrVectorLengthMismatch indicates two vectors have different dimensions.
	ErrVectorLengthMismatch = errors.New("vector length mismatch")

	// ErrDimensionMismatch indicates the index and the store disagree on shape.
	ErrDimensionMismatch = errors.New("index and store dimensions differ")

	// ErrNotLoaded is returned by a Handle that holds no store.
	ErrNotLoaded = errors.New("vector store not loaded")

	// ErrNoEmbedder is returned by Search when the store was loaded without
	// an embedder.
	ErrNoEmbedder = errors.New("vector store has no embedder")
)

// Load stages.
const (
	StageIndex  = "index"
	StageStore  = "store"
	StageAttach = "attach"
)

// LoadError reports which step of Load failed.
type LoadError struct {
	Stage string
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load %s %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
