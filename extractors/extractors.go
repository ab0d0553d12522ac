// Package extractors maps source names to the function that picks follow-up
// article URLs out of a listing snapshot.
package extractors

import (
	"sort"
	"strings"
	"sync"

	"github.com/pevans/newsharvest/snapshot"
)

// URLExtractor returns the URLs to fetch after a listing has been saved.
// Sentinel links may be included; callers filter them.
type URLExtractor func(listing snapshot.Listing) []string

// Default returns every article URL in listing order.
func Default(listing snapshot.Listing) []string {
	urls := make([]string, 0, len(listing.Articles))
	for _, a := range listing.Articles {
		urls = append(urls, a.URL)
	}
	return urls
}

// Malaymail follows every link on a Malay Mail archive page. The archive
// container already excludes carousel and sidebar entries.
func Malaymail(listing snapshot.Listing) []string {
	return Default(listing)
}

// Registry looks up extractors by source name. Names are matched
// case-insensitively after trimming.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]URLExtractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]URLExtractor)}
}

// DefaultRegistry returns a registry with the built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("malaymail", Malaymail)
	return r
}

// Register adds or replaces the extractor for name. Empty names and nil
// functions are ignored.
func (r *Registry) Register(name string, fn URLExtractor) {
	key := normalize(name)
	if key == "" || fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[key] = fn
}

// Get returns the extractor registered for name, or Default.
func (r *Registry) Get(name string) URLExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.extractors[normalize(name)]; ok {
		return fn
	}
	return Default
}

// Names lists the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
