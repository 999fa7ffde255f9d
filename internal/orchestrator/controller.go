// Package orchestrator owns the session stream lifecycle: at most one
// active model stream per session, cooperative mid-stream cancellation, and
// ordered delivery of stream events to the caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/docpilot/internal/docctx"
	"github.com/user/docpilot/internal/toolset"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/pkg/llm"
)

// eventBufferSize is the per-stream event channel buffer. Sends block when
// it fills; events are never dropped or reordered.
const eventBufferSize = 64

// StartRequest carries everything needed to start a stream for a session.
type StartRequest struct {
	SessionID     types.SessionID
	DocumentType  types.DocumentType
	Prompt        string
	PriorMessages []types.ChatMessage
	Images        []types.Image
	Fragment      types.ContextFragment
}

// activeStream is the controller's record of a session's in-flight stream.
// It is owned exclusively by the Orchestrator; callers interact with it only
// through Start and Cancel.
type activeStream struct {
	id        types.StreamID
	docType   types.DocumentType
	startedAt time.Time
	cancel    context.CancelFunc
}

// Orchestrator coordinates context resolution, tool dispatch, the provider
// call, and event multiplexing for each stream. It holds no package-level
// state: independent instances do not interfere, and Close tears down all
// in-flight streams.
type Orchestrator struct {
	provider  llm.Provider
	creds     llm.CredentialProvider
	resolver  *docctx.Resolver
	cache     *docctx.Cache
	source    types.ContentSource
	registry  *toolset.Registry
	prompts   *PromptBuilder
	maxRounds int

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu     sync.Mutex
	active map[types.SessionID]*activeStream
	wg     sync.WaitGroup
}

// New creates an Orchestrator wired to its collaborators. maxRounds bounds
// the tool loop per stream.
func New(
	provider llm.Provider,
	creds llm.CredentialProvider,
	cache *docctx.Cache,
	source types.ContentSource,
	registry *toolset.Registry,
	prompts *PromptBuilder,
	maxRounds int,
) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		provider:   provider,
		creds:      creds,
		resolver:   docctx.NewResolver(cache, source),
		cache:      cache,
		source:     source,
		registry:   registry,
		prompts:    prompts,
		maxRounds:  maxRounds,
		rootCtx:    ctx,
		rootCancel: cancel,
		active:     make(map[types.SessionID]*activeStream),
	}
}

// Close cancels all active streams and waits for their goroutines to drain.
func (o *Orchestrator) Close() {
	o.rootCancel()
	o.wg.Wait()
}

// Start begins a stream for the session and returns its ordered event
// channel. Any prior stream for the same session is cancelled first ("last
// request wins"). Configuration failures (no credential, no document for a
// PDF) surface as a single error event on the returned channel without any
// provider call; in that case no active-stream entry is created.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (<-chan types.StreamEvent, error) {
	if !req.DocumentType.Valid() {
		return nil, fmt.Errorf("unknown document type %q", req.DocumentType)
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	// Last request wins: take over the session before doing any work on
	// behalf of the new request.
	o.Cancel(req.SessionID)

	streamID := types.NewStreamID()
	events := make(chan types.StreamEvent, eventBufferSize)

	if _, ok := o.creds.Resolve(ctx, o.provider.Name()); !ok {
		slog.Warn("no credential for provider",
			"session_id", string(req.SessionID),
			"provider", o.provider.Name(),
		)
		o.failImmediately(events, streamID, req.SessionID,
			fmt.Sprintf("no API credential configured for provider %q", o.provider.Name()))
		return events, nil
	}

	ac, err := o.resolver.Resolve(ctx, req.SessionID, req.DocumentType, req.Fragment)
	if err != nil {
		if errors.Is(err, docctx.ErrNoDocument) {
			o.failImmediately(events, streamID, req.SessionID,
				"no document loaded: open a document or load its content before asking about it")
			return events, nil
		}
		o.failImmediately(events, streamID, req.SessionID, err.Error())
		return events, nil
	}

	sysPrompt, tools, err := o.registry.For(ac)
	if err != nil {
		o.failImmediately(events, streamID, req.SessionID, err.Error())
		return events, nil
	}

	streamCtx := o.register(req.SessionID, streamID, req.DocumentType)

	slog.Info("stream started",
		"session_id", string(req.SessionID),
		"stream_id", string(streamID),
		"doc_type", string(req.DocumentType),
		"pages", ac.PageCount(),
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(events)
		defer o.release(req.SessionID, streamID)

		outcome := o.runStream(streamCtx, streamID, req, ac, sysPrompt, tools, events)
		slog.Info("stream finished",
			"session_id", string(req.SessionID),
			"stream_id", string(streamID),
			"outcome", outcome,
		)
	}()

	return events, nil
}

// Cancel signals the session's active stream, if any. Cancelling a session
// with no active stream is a no-op, not an error.
func (o *Orchestrator) Cancel(sessionID types.SessionID) {
	o.mu.Lock()
	stream, ok := o.active[sessionID]
	if ok {
		delete(o.active, sessionID)
	}
	o.mu.Unlock()

	if ok {
		stream.cancel()
		slog.Debug("stream cancelled",
			"session_id", string(sessionID),
			"stream_id", string(stream.id),
		)
	}
}

// LoadContext explicitly populates the context cache for a session ahead of
// a stream, returning page and word counts.
func (o *Orchestrator) LoadContext(ctx context.Context, sessionID types.SessionID, locator string) (docctx.Stats, error) {
	if docctx.IsRemoteLocator(locator) {
		return docctx.Stats{}, fmt.Errorf("remote locator %s: supply pre-extracted pages instead", locator)
	}
	entry, err := o.cache.Load(ctx, sessionID, locator, o.source)
	if err != nil {
		return docctx.Stats{}, err
	}
	stats := entry.Stats()
	slog.Info("context loaded",
		"session_id", string(sessionID),
		"source_path", locator,
		"pages", stats.PageCount,
		"words", stats.TotalWords,
	)
	return stats, nil
}

// ClearContext removes the session's cached document context.
func (o *Orchestrator) ClearContext(sessionID types.SessionID) {
	o.cache.Clear(sessionID)
}

// register installs the new active-stream entry under the lock, cancelling
// any stream that raced in since the caller's takeover. The check-then-set
// is a single critical section so two concurrent Starts for one session can
// never both believe they own the stream.
func (o *Orchestrator) register(sessionID types.SessionID, streamID types.StreamID, docType types.DocumentType) context.Context {
	streamCtx, cancel := context.WithCancel(o.rootCtx)

	o.mu.Lock()
	if prior, ok := o.active[sessionID]; ok {
		prior.cancel()
	}
	o.active[sessionID] = &activeStream{
		id:        streamID,
		docType:   docType,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	o.mu.Unlock()

	return streamCtx
}

// release removes the session's entry if it still belongs to this stream.
// It runs on every exit path so a session can always accept a new Start.
func (o *Orchestrator) release(sessionID types.SessionID, streamID types.StreamID) {
	o.mu.Lock()
	if current, ok := o.active[sessionID]; ok && current.id == streamID {
		current.cancel()
		delete(o.active, sessionID)
	}
	o.mu.Unlock()
}

// failImmediately reports a configuration error as the stream's only event.
func (o *Orchestrator) failImmediately(events chan types.StreamEvent, streamID types.StreamID, sessionID types.SessionID, msg string) {
	events <- types.StreamEvent{
		Type:      types.EventError,
		StreamID:  streamID,
		SessionID: sessionID,
		At:        time.Now(),
		Error:     msg,
	}
	close(events)
}

// activeCount reports the number of in-flight streams, for tests and
// diagnostics.
func (o *Orchestrator) activeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}
