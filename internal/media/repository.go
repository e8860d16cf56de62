package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DescriptorExt is appended to a media URI to locate its descriptor file.
const DescriptorExt = ".json"

var (
	// ErrNotFound is returned when no descriptor exists for a media URI.
	ErrNotFound = errors.New("media not found")

	// ErrInvalidDescriptor is returned when a descriptor cannot be decoded
	// or describes an unusable stream.
	ErrInvalidDescriptor = errors.New("invalid media descriptor")
)

// Repository resolves media URIs to parsed stream metadata.
type Repository interface {
	// Get returns the metadata for uri. The returned value is shared and
	// must be treated as read-only.
	Get(ctx context.Context, uri string) (*StreamMetadata, error)

	// CachedCount returns the number of descriptors held in memory.
	// Used for metrics.
	CachedCount() int
}

// DescriptorRepository loads JSON descriptors from an afero filesystem and
// caches the decoded metadata in a Store. It is safe for concurrent use.
type DescriptorRepository struct {
	mu    sync.RWMutex
	fs    afero.Fs
	root  string
	store Store
}

// NewDescriptorRepository constructs a repository rooted at root on fsys with
// a default in-memory store.
func NewDescriptorRepository(fsys afero.Fs, root string) *DescriptorRepository {
	return NewDescriptorRepositoryWithStore(fsys, root, NewInMemoryStore())
}

// NewDescriptorRepositoryWithStore constructs a repository that caches into store.
func NewDescriptorRepositoryWithStore(fsys afero.Fs, root string, store Store) *DescriptorRepository {
	return &DescriptorRepository{fs: fsys, root: root, store: store}
}

// Get implements Repository.Get.
func (r *DescriptorRepository) Get(ctx context.Context, uri string) (*StreamMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	m, ok := r.store.GetMetadata(uri)
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := r.load(uri)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have loaded it meanwhile; keep the first copy.
	if existing, ok := r.store.GetMetadata(uri); ok {
		return existing, nil
	}
	r.store.SetMetadata(m)
	return m, nil
}

// CachedCount implements Repository.CachedCount.
func (r *DescriptorRepository) CachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListURIs())
}

func (r *DescriptorRepository) load(uri string) (*StreamMetadata, error) {
	name, err := r.resolve(uri)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(r.fs, name+DescriptorExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("read descriptor %s: %w", uri, err)
	}

	var m StreamMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, uri, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, uri, err)
	}

	m.URI = uri
	if m.DataPath == "" {
		m.DataPath = name
	} else if !path.IsAbs(m.DataPath) {
		m.DataPath = path.Join(path.Dir(name), m.DataPath)
	}
	return &m, nil
}

// resolve maps a media URI to a path under root, rejecting traversal.
func (r *DescriptorRepository) resolve(uri string) (string, error) {
	clean := path.Clean("/" + uri)
	if strings.Contains(uri, "..") || clean == "/" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return path.Join(r.root, clean), nil
}

func (m *StreamMetadata) validate() error {
	if len(m.Tracks) == 0 {
		return errors.New("no tracks")
	}
	for i := range m.Tracks {
		t := &m.Tracks[i]
		if t.MediaType != MediaTypeVideo && t.MediaType != MediaTypeAudio {
			return fmt.Errorf("track %d: unsupported media type %d", i, t.MediaType)
		}
		if t.Timescale == 0 {
			return fmt.Errorf("track %d: zero timescale", i)
		}
		t.Index = i
	}
	return nil
}
