package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Write persists the index and store artifacts. vectors[i] is the embedding
// of manifest.Chunks[i]. Each file is written to a temporary sibling and
// renamed into place so readers never observe a partial artifact.
func Write(indexPath, storePath string, manifest Manifest, vectors [][]float32) error {
	if len(manifest.Chunks) == 0 {
		return fmt.Errorf("no chunks to write")
	}
	if len(vectors) != len(manifest.Chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrVectorLengthMismatch, len(vectors), len(manifest.Chunks))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("invalid dim: 0")
	}
	if manifest.Dim == 0 {
		manifest.Dim = dim
	}
	if manifest.Dim != dim {
		return fmt.Errorf("%w: manifest dim %d, vectors dim %d", ErrDimensionMismatch, manifest.Dim, dim)
	}
	if manifest.IndexVersion == 0 {
		manifest.IndexVersion = IndexVersion
	}
	if manifest.CreatedAt == "" {
		manifest.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	flat := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrVectorLengthMismatch, i, len(v), dim)
		}
		if manifest.Normalized {
			v = NormalizeL2(v)
		}
		flat = append(flat, v...)
	}

	ix := &Index{Version: manifest.IndexVersion, Dim: dim, Count: len(vectors), Vectors: flat}
	if err := writeAtomic(indexPath, func(w io.Writer) error { return writeIndex(w, ix) }); err != nil {
		return fmt.Errorf("cannot write index %s: %w", indexPath, err)
	}

	if err := writeAtomic(storePath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}); err != nil {
		return fmt.Errorf("cannot write store %s: %w", storePath, err)
	}
	return nil
}

func writeIndex(w io.Writer, ix *Index) error {
	header := make([]byte, indexHeaderSize)
	copy(header[0:4], indexMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(ix.Version))
	binary.LittleEndian.PutUint32(header[8:12], uint32(ix.Dim))
	binary.LittleEndian.PutUint32(header[12:16], uint32(ix.Count))
	if _, err := w.Write(header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, ix.Vectors)
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
