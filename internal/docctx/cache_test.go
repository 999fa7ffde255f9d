package docctx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/docpilot/internal/types"
)

// fakeSource returns canned pages and counts how often it is read.
type fakeSource struct {
	pages []types.Page
	err   error
	calls atomic.Int64
	delay time.Duration
}

func (f *fakeSource) LoadPages(ctx context.Context, locator string) ([]types.Page, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func somePages(n int) []types.Page {
	pages := make([]types.Page, n)
	for i := range pages {
		pages[i] = types.Page{Number: i + 1, Text: fmt.Sprintf("page %d text", i+1), WordCount: 3}
	}
	return pages
}

func TestCacheLoadGetClear(t *testing.T) {
	cache := NewCache()
	source := &fakeSource{pages: somePages(3)}
	ctx := context.Background()

	if _, ok := cache.Get("s1"); ok {
		t.Fatal("expected empty cache")
	}

	entry, err := cache.Load(ctx, "s1", "/tmp/report.txt", source)
	if err != nil {
		t.Fatal(err)
	}
	if entry.SourcePath != "/tmp/report.txt" {
		t.Errorf("expected source path to be recorded, got %q", entry.SourcePath)
	}
	stats := entry.Stats()
	if stats.PageCount != 3 || stats.TotalWords != 9 {
		t.Errorf("expected 3 pages / 9 words, got %+v", stats)
	}

	got, ok := cache.Get("s1")
	if !ok || len(got.Pages) != 3 {
		t.Fatalf("expected cached entry with 3 pages, got %+v ok=%v", got, ok)
	}

	cache.Clear("s1")
	if _, ok := cache.Get("s1"); ok {
		t.Error("expected entry removed after Clear")
	}
	// Clearing again is a no-op
	cache.Clear("s1")
}

func TestCacheReloadOverwrites(t *testing.T) {
	cache := NewCache()
	ctx := context.Background()

	if _, err := cache.Load(ctx, "s1", "a.txt", &fakeSource{pages: somePages(2)}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(ctx, "s1", "b.txt", &fakeSource{pages: somePages(5)}); err != nil {
		t.Fatal(err)
	}

	entry, ok := cache.Get("s1")
	if !ok {
		t.Fatal("expected entry")
	}
	if entry.SourcePath != "b.txt" || len(entry.Pages) != 5 {
		t.Errorf("expected reload to overwrite, got %q with %d pages", entry.SourcePath, len(entry.Pages))
	}
}

func TestCacheLoadFailureLeavesNoEntry(t *testing.T) {
	cache := NewCache()
	source := &fakeSource{err: fmt.Errorf("disk on fire")}

	if _, err := cache.Load(context.Background(), "s1", "x.txt", source); err == nil {
		t.Fatal("expected load error")
	}
	if _, ok := cache.Get("s1"); ok {
		t.Error("failed load must not populate the cache")
	}
}

func TestCacheConcurrentLoadsCollapse(t *testing.T) {
	cache := NewCache()
	source := &fakeSource{pages: somePages(1), delay: 50 * time.Millisecond}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(ctx, "s1", "same.txt", source); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := source.calls.Load(); n != 1 {
		t.Errorf("expected concurrent loads to collapse into 1 source read, got %d", n)
	}
}
