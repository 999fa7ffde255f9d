// internal/docctx/resolver.go
package docctx

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/user/docpilot/internal/types"
)

// ErrNoDocument is returned when a PDF stream resolves to zero pages: no
// supplied content, no cached context, and no loadable local source. The
// model call is never attempted in that case.
var ErrNoDocument = errors.New("no document loaded")

// Resolver produces the effective agent context for a stream. Only the PDF
// type has multi-source resolution; spreadsheet and document types pass the
// supplied fragment through untouched.
type Resolver struct {
	cache  *Cache
	source types.ContentSource
}

// NewResolver creates a Resolver over the given cache and content source.
func NewResolver(cache *Cache, source types.ContentSource) *Resolver {
	return &Resolver{cache: cache, source: source}
}

// Resolve builds the agent context for the call. For PDFs, page resolution
// tries, in order: pages supplied in the fragment (freshly fetched content
// wins over any cache), the session's cached context, then a one-time load
// from a local source path that also populates the cache. Load failures are
// logged and non-fatal; a PDF that still has zero pages afterwards fails
// with ErrNoDocument.
func (r *Resolver) Resolve(ctx context.Context, sessionID types.SessionID, docType types.DocumentType, frag types.ContextFragment) (*types.AgentContext, error) {
	ac := &types.AgentContext{
		UserID:        frag.UserID,
		SessionID:     sessionID,
		DocumentType:  docType,
		DocumentID:    frag.DocumentID,
		SourcePath:    frag.SourcePath,
		SelectedRange: frag.SelectedRange,
		SelectedText:  frag.SelectedText,
		CurrentPage:   frag.CurrentPage,
		ResolvedAt:    time.Now(),
	}

	if docType != types.DocTypePDF {
		return ac, nil
	}

	if len(frag.Pages) > 0 {
		ac.Pages = frag.Pages
		return ac, nil
	}

	if entry, ok := r.cache.Get(sessionID); ok {
		ac.Pages = entry.Pages
		if ac.SourcePath == "" {
			ac.SourcePath = entry.SourcePath
		}
		return ac, nil
	}

	if frag.SourcePath != "" && !IsRemoteLocator(frag.SourcePath) {
		entry, err := r.cache.Load(ctx, sessionID, frag.SourcePath, r.source)
		if err != nil {
			slog.Warn("document load failed",
				"session_id", string(sessionID),
				"source_path", frag.SourcePath,
				"error", err,
			)
		} else {
			ac.Pages = entry.Pages
		}
	}

	if len(ac.Pages) == 0 {
		return nil, ErrNoDocument
	}
	return ac, nil
}
