package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load reads the index, then the store, then attaches one to the other.
// Any failure is a *LoadError naming the stage.
func Load(indexPath, storePath string, opts ...Option) (*Store, error) {
	ix, err := ReadIndex(indexPath)
	if err != nil {
		return nil, &LoadError{Stage: StageIndex, Path: indexPath, Err: err}
	}

	m, err := ReadManifest(storePath)
	if err != nil {
		return nil, &LoadError{Stage: StageStore, Path: storePath, Err: err}
	}

	s := newStore(m, opts...)
	if err := s.Attach(ix); err != nil {
		return nil, &LoadError{Stage: StageAttach, Err: err}
	}
	return s, nil
}

// ReadIndex decodes a binary index artifact.
func ReadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(f)
	header := make([]byte, indexHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	if string(header[0:4]) != indexMagic {
		return nil, fmt.Errorf("bad magic %q", header[0:4])
	}

	ix := &Index{
		Version: int(binary.LittleEndian.Uint32(header[4:8])),
		Dim:     int(binary.LittleEndian.Uint32(header[8:12])),
		Count:   int(binary.LittleEndian.Uint32(header[12:16])),
	}
	if ix.Version != IndexVersion {
		return nil, fmt.Errorf("unsupported index version %d", ix.Version)
	}
	if ix.Dim <= 0 {
		return nil, fmt.Errorf("invalid dim: %d", ix.Dim)
	}

	expected := int64(indexHeaderSize) + int64(ix.Count)*int64(ix.Dim)*4
	if st.Size() != expected {
		return nil, fmt.Errorf("size mismatch: got %d want %d (count=%d dim=%d)", st.Size(), expected, ix.Count, ix.Dim)
	}

	ix.Vectors = make([]float32, ix.Count*ix.Dim)
	if err := binary.Read(r, binary.LittleEndian, ix.Vectors); err != nil {
		return nil, fmt.Errorf("cannot read vectors: %w", err)
	}
	return ix, nil
}

// ReadManifest decodes a JSON store artifact.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid store JSON: %w", err)
	}
	if m.IndexVersion != IndexVersion {
		return nil, fmt.Errorf("unsupported store version %d", m.IndexVersion)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("invalid dim in store: %d", m.Dim)
	}
	return &m, nil
}
