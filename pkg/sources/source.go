// Package sources defines the interface device collectors implement
// and a thread-safe registry for managing them. Each source adapts its
// native device shape into the common raw record form; the core engine
// never sees source-native keys.
package sources

import (
	"context"
	"sync"

	"github.com/stenbroen/assetsync/pkg/asset"
)

// Source fetches raw device records from one system of record.
type Source interface {
	// ID identifies the source (static, mdm, snmp, scan).
	ID() asset.Source

	// Fetch returns the source's current device records. A fetch error
	// aborts the whole source run; partial batches are never returned.
	Fetch(ctx context.Context) ([]asset.RawDeviceRecord, error)
}

// Sources is a thread-safe container for managing registered sources.
type Sources struct {
	mu      sync.RWMutex
	sources map[asset.Source]Source
}

// NewSources creates a new Sources instance.
func NewSources() *Sources {
	return &Sources{
		sources: make(map[asset.Source]Source),
	}
}

// Get returns a source by ID.
func (s *Sources) Get(id asset.Source) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, found := s.sources[id]
	return src, found
}

// Set registers a source under its own ID.
func (s *Sources) Set(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID()] = src
}

// Delete removes a source by ID.
func (s *Sources) Delete(id asset.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
}

// Len returns the number of registered sources.
func (s *Sources) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// IDs returns the IDs of all registered sources in no particular order.
func (s *Sources) IDs() []asset.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]asset.Source, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	return ids
}

// List returns all registered sources in no particular order.
func (s *Sources) List() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	return out
}
