package crawler

import (
	"maps"
	"slices"

	"github.com/nao1215/sitemapgen/internal/model"
)

// frontier holds discovered URLs that have not been fetched yet.
// It has set semantics: a URL already waiting is not added twice.
// URLs are removed in LIFO order.
type frontier struct {
	stack  []model.CanonicalURL
	queued map[model.CanonicalURL]struct{}
}

func newFrontier() *frontier {
	return &frontier{
		stack:  make([]model.CanonicalURL, 0),
		queued: make(map[model.CanonicalURL]struct{}),
	}
}

// Push adds u and reports whether it was not already waiting.
func (f *frontier) Push(u model.CanonicalURL) bool {
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	f.stack = append(f.stack, u)
	return true
}

// Pop removes the most recently pushed URL.
func (f *frontier) Pop() (model.CanonicalURL, bool) {
	if len(f.stack) == 0 {
		return "", false
	}
	last := len(f.stack) - 1
	u := f.stack[last]
	f.stack = f.stack[:last]
	delete(f.queued, u)
	return u, true
}

// Contains reports whether u is waiting in the frontier.
func (f *frontier) Contains(u model.CanonicalURL) bool {
	_, ok := f.queued[u]
	return ok
}

// Len returns the number of waiting URLs.
func (f *frontier) Len() int {
	return len(f.stack)
}

// visitedSet records URLs whose fetch has been attempted. It only grows.
type visitedSet struct {
	urls map[model.CanonicalURL]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{urls: make(map[model.CanonicalURL]struct{})}
}

// MarkIfNotVisited marks u as visited and reports whether it was new.
func (v *visitedSet) MarkIfNotVisited(u model.CanonicalURL) bool {
	if _, ok := v.urls[u]; ok {
		return false
	}
	v.urls[u] = struct{}{}
	return true
}

// Has reports whether u was visited.
func (v *visitedSet) Has(u model.CanonicalURL) bool {
	_, ok := v.urls[u]
	return ok
}

// Len returns the number of visited URLs.
func (v *visitedSet) Len() int {
	return len(v.urls)
}

// Sorted returns the visited URLs in ascending order.
func (v *visitedSet) Sorted() []model.CanonicalURL {
	return slices.Sorted(maps.Keys(v.urls))
}
