package media

// Store is the persistence abstraction for parsed stream metadata.
// The Repository uses Store for all cached reads and writes; callers of
// Repository do not need to know which Store is used.
type Store interface {
	GetMetadata(uri string) (*StreamMetadata, bool)
	SetMetadata(m *StreamMetadata)
	ListURIs() []string
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	entries map[string]*StreamMetadata
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*StreamMetadata),
	}
}

// GetMetadata implements Store.GetMetadata.
func (s *InMemoryStore) GetMetadata(uri string) (*StreamMetadata, bool) {
	m, ok := s.entries[uri]
	return m, ok
}

// SetMetadata implements Store.SetMetadata.
func (s *InMemoryStore) SetMetadata(m *StreamMetadata) {
	s.entries[m.URI] = m
}

// ListURIs implements Store.ListURIs.
func (s *InMemoryStore) ListURIs() []string {
	uris := make([]string, 0, len(s.entries))
	for uri := range s.entries {
		uris = append(uris, uri)
	}
	return uris
}
