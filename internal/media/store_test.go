package media

import (
	"testing"
)

func TestInMemoryStore_GetSetMetadata(t *testing.T) {
	store := NewInMemoryStore()

	_, ok := store.GetMetadata("movie.mp4")
	if ok {
		t.Error("expected not found for empty store")
	}

	m := &StreamMetadata{URI: "movie.mp4", Tracks: []Track{{MediaType: MediaTypeVideo, Timescale: 90000}}}
	store.SetMetadata(m)

	got, ok := store.GetMetadata("movie.mp4")
	if !ok || got != m {
		t.Errorf("GetMetadata: ok=%v, got %p want %p", ok, got, m)
	}
}

func TestInMemoryStore_SetMetadata_replaces(t *testing.T) {
	store := NewInMemoryStore()
	m1 := &StreamMetadata{URI: "movie.mp4"}
	m2 := &StreamMetadata{URI: "movie.mp4"}
	store.SetMetadata(m1)
	store.SetMetadata(m2)

	got, ok := store.GetMetadata("movie.mp4")
	if !ok || got != m2 {
		t.Errorf("SetMetadata should replace: got %p want %p", got, m2)
	}
	if uris := store.ListURIs(); len(uris) != 1 {
		t.Errorf("ListURIs: got %v", uris)
	}
}
