// Package docctx resolves and caches per-session document context: the
// extracted pages, identifiers, and selection state a stream is grounded on.
package docctx

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/user/docpilot/internal/types"
)

// Entry is the cached document context for one session: the source it was
// loaded from and its ordered pages. Entries never expire; they are replaced
// on reload and removed only by an explicit Clear.
type Entry struct {
	SourcePath string
	Pages      []types.Page
	LoadedAt   time.Time
}

// Stats summarizes a cache entry for callers of the explicit load path.
type Stats struct {
	PageCount  int `json:"page_count"`
	TotalWords int `json:"total_words"`
}

// Stats computes the entry's page and word counts.
func (e *Entry) Stats() Stats {
	s := Stats{PageCount: len(e.Pages)}
	for _, p := range e.Pages {
		s.TotalWords += p.WordCount
	}
	return s
}

// Cache is a session-keyed store of loaded document context. Reads are
// concurrent; loads for the same session are serialized through a
// singleflight group so concurrent callers share one read of the source.
type Cache struct {
	store *gocache.Cache
	group singleflight.Group
}

// NewCache creates an empty context cache with no expiry.
func NewCache() *Cache {
	return &Cache{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Load reads pages from the source and stores them under the session,
// overwriting any previous entry. Concurrent loads for the same session
// collapse into a single source read.
func (c *Cache) Load(ctx context.Context, sessionID types.SessionID, locator string, source types.ContentSource) (*Entry, error) {
	v, err, _ := c.group.Do(string(sessionID), func() (any, error) {
		pages, err := source.LoadPages(ctx, locator)
		if err != nil {
			return nil, fmt.Errorf("load pages from %s: %w", locator, err)
		}
		entry := &Entry{
			SourcePath: locator,
			Pages:      pages,
			LoadedAt:   time.Now(),
		}
		c.store.Set(string(sessionID), entry, gocache.NoExpiration)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Get returns the cached entry for the session, if any.
func (c *Cache) Get(sessionID types.SessionID) (*Entry, bool) {
	v, ok := c.store.Get(string(sessionID))
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Clear removes the session's cached entry. Clearing a session with no
// entry is a no-op.
func (c *Cache) Clear(sessionID types.SessionID) {
	c.store.Delete(string(sessionID))
}
