// Package store holds the live page map served by the HTTP handler.
//
// The map is published as an immutable Snapshot behind an atomic pointer.
// Readers take one snapshot per request and never observe a partially
// built map; the rebuild coordinator is the only writer.
package store

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/conneroisu/tessera/internal/content"
)

// Snapshot is one published generation of the page map. It must not be
// modified after it has been swapped in.
type Snapshot struct {
	Generation uint64
	Built      time.Time
	pages      map[string]*content.Page
}

// Get returns the page for route.
func (s *Snapshot) Get(route string) (*content.Page, bool) {
	p, ok := s.pages[route]
	return p, ok
}

// Len returns the number of pages.
func (s *Snapshot) Len() int {
	return len(s.pages)
}

// Routes returns every route in sorted order.
func (s *Snapshot) Routes() []string {
	routes := make([]string, 0, len(s.pages))
	for route := range s.pages {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// Pages returns every page sorted by route.
func (s *Snapshot) Pages() []*content.Page {
	routes := s.Routes()
	pages := make([]*content.Page, len(routes))
	for i, route := range routes {
		pages[i] = s.pages[route]
	}
	return pages
}

// Store publishes snapshots atomically.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// New creates a store holding an empty generation-zero snapshot.
func New() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{pages: map[string]*content.Page{}})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Swap publishes pages as the next generation and returns it. The caller
// hands over ownership of pages.
func (s *Store) Swap(pages map[string]*content.Page) *Snapshot {
	if pages == nil {
		pages = map[string]*content.Page{}
	}
	for {
		prev := s.current.Load()
		next := &Snapshot{
			Generation: prev.Generation + 1,
			Built:      time.Now(),
			pages:      pages,
		}
		if s.current.CompareAndSwap(prev, next) {
			return next
		}
	}
}
