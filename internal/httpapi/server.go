// Package httpapi exposes the orchestrator over HTTP: stream starts are
// served as Server-Sent Events, everything else is plain JSON.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/user/docpilot/internal/orchestrator"
	"github.com/user/docpilot/internal/types"
)

// Server is a lightweight HTTP handler over the orchestrator.
type Server struct {
	orch *orchestrator.Orchestrator
	mux  *http.ServeMux
}

// NewServer creates a Server routing to the given orchestrator.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		orch: orch,
		mux:  http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/stream/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /api/context/load", s.handleLoadContext)
	s.mux.HandleFunc("DELETE /api/context/", s.handleClearContext)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// streamRequest is the JSON body for POST /api/stream.
type streamRequest struct {
	SessionID     string                `json:"session_id"`
	DocumentType  string                `json:"document_type"`
	Prompt        string                `json:"prompt"`
	PriorMessages []types.ChatMessage   `json:"prior_messages,omitempty"`
	Images        []types.Image         `json:"images,omitempty"`
	Fragment      types.ContextFragment `json:"fragment"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Prompt == "" || req.SessionID == "" {
		http.Error(w, `{"error":"prompt and session_id are required"}`, http.StatusBadRequest)
		return
	}
	docType, err := types.ParseDocumentType(req.DocumentType)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	events, err := s.orch.Start(r.Context(), orchestrator.StartRequest{
		SessionID:     types.SessionID(req.SessionID),
		DocumentType:  docType,
		Prompt:        req.Prompt,
		PriorMessages: req.PriorMessages,
		Images:        req.Images,
		Fragment:      req.Fragment,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("encode stream event failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		case <-r.Context().Done():
			// Client disconnected mid-stream: cancel so the provider stream
			// does not run unattended, then drain until the stream goroutine
			// closes the channel.
			s.orch.Cancel(types.SessionID(req.SessionID))
			for range events {
			}
			return
		}
	}
}

// cancelRequest is the JSON body for POST /api/stream/cancel.
type cancelRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, `{"error":"session_id is required"}`, http.StatusBadRequest)
		return
	}

	// Cancelling an idle session is still an acknowledged success.
	s.orch.Cancel(types.SessionID(req.SessionID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// loadContextRequest is the JSON body for POST /api/context/load.
type loadContextRequest struct {
	SessionID  string `json:"session_id"`
	SourcePath string `json:"source_path"`
}

func (s *Server) handleLoadContext(w http.ResponseWriter, r *http.Request) {
	var req loadContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.SourcePath == "" {
		http.Error(w, `{"error":"session_id and source_path are required"}`, http.StatusBadRequest)
		return
	}

	stats, err := s.orch.LoadContext(r.Context(), types.SessionID(req.SessionID), req.SourcePath)
	if err != nil {
		slog.Warn("context load failed", "session_id", req.SessionID, "error", err)
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleClearContext(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/context/")
	if sessionID == "" {
		http.Error(w, `{"error":"session id required"}`, http.StatusBadRequest)
		return
	}

	s.orch.ClearContext(types.SessionID(sessionID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}
