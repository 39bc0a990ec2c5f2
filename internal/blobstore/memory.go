package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"scribe/internal/fileutil"
)

type memoryBlob struct {
	folder   string
	name     string
	content  []byte
	metadata *string
}

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	blobs  map[string]*memoryBlob
	writes atomic.Int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]*memoryBlob)}
}

// Put stores content directly and returns its ref.
func (m *Memory) Put(folder, name string, content []byte) string {
	ref := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = &memoryBlob{folder: strings.Trim(folder, "/"), name: name, content: slices.Clone(content)}
	return ref
}

// Content returns the stored bytes of ref.
func (m *Memory) Content(ref string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[ref]
	if !ok {
		return nil, false
	}
	return slices.Clone(blob.content), true
}

// MetadataWrites counts successful SetMetadata calls.
func (m *Memory) MetadataWrites() int {
	return int(m.writes.Load())
}

func (m *Memory) List(_ context.Context, folder string) ([]string, error) {
	folder = strings.Trim(folder, "/")
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]string, 0, len(m.blobs))
	for ref, blob := range m.blobs {
		if blob.folder == folder {
			refs = append(refs, ref)
		}
	}
	slices.SortFunc(refs, func(a, b string) int {
		if c := strings.Compare(m.blobs[a].name, m.blobs[b].name); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return refs, nil
}

func (m *Memory) GetMetadata(_ context.Context, ref string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[ref]
	if !ok {
		return "", false, notFound(ref)
	}
	if blob.metadata == nil {
		return "", false, nil
	}
	return *blob.metadata, true, nil
}

func (m *Memory) SetMetadata(_ context.Context, ref, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[ref]
	if !ok {
		return notFound(ref)
	}
	blob.metadata = &value
	m.writes.Add(1)
	return nil
}

func (m *Memory) Upload(_ context.Context, folder, localPath string) (string, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return m.Put(folder, filepath.Base(localPath), content), nil
}

func (m *Memory) Download(_ context.Context, ref, localDir string) (string, error) {
	m.mu.RLock()
	blob, ok := m.blobs[ref]
	var content []byte
	var name string
	if ok {
		content, name = blob.content, blob.name
	}
	m.mu.RUnlock()
	if !ok {
		return "", notFound(ref)
	}
	target := filepath.Join(localDir, name)
	if err := fileutil.WriteFileAtomic(target, content, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return target, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[ref]; !ok {
		return notFound(ref)
	}
	delete(m.blobs, ref)
	return nil
}

func (m *Memory) Name(_ context.Context, ref string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[ref]
	if !ok {
		return "", notFound(ref)
	}
	return blob.name, nil
}

func (m *Memory) Close() error { return nil }
