package plotforge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact is one produced output registered with the pipeline.
type Artifact struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Kind         string    `json:"kind"`
	Checksum     string    `json:"checksum"`
	Size         int64     `json:"size"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// ArtifactRegistrar is the narrow persistence collaborator: the engine
// registers produced artifacts with a checksum and nothing more. Real
// persistence lives behind this interface, out of scope.
type ArtifactRegistrar interface {
	RegisterArtifact(path, kind string) (*Artifact, error)
}

// MemoryArtifactIndex is the in-process ArtifactRegistrar used by default:
// it checksums the file and appends to an in-memory index.
type MemoryArtifactIndex struct {
	mu        sync.Mutex
	artifacts []*Artifact
}

// NewMemoryArtifactIndex creates an empty index.
func NewMemoryArtifactIndex() *MemoryArtifactIndex {
	return &MemoryArtifactIndex{}
}

// RegisterArtifact computes the file's SHA-256 checksum, assigns an id, and
// appends the artifact to the index.
func (x *MemoryArtifactIndex) RegisterArtifact(path, kind string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, path, err)
	}

	sum := sha256.Sum256(raw)
	artifact := &Artifact{
		ID:           uuid.NewString(),
		Path:         path,
		Kind:         kind,
		Checksum:     hex.EncodeToString(sum[:]),
		Size:         int64(len(raw)),
		RegisteredAt: time.Now(),
	}

	x.mu.Lock()
	x.artifacts = append(x.artifacts, artifact)
	x.mu.Unlock()

	return artifact, nil
}

// Artifacts returns the registered artifacts in registration order.
func (x *MemoryArtifactIndex) Artifacts() []*Artifact {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*Artifact(nil), x.artifacts...)
}
