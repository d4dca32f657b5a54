package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"net/http"
	"strings"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/api/middleware"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/go-chi/chi/v5"
)

type RAGService interface {
	Query(ctx context.Context, query, sessionID string) (*service.QueryResult, error)
	QueryStream(ctx context.Context, query, sessionID string) iter.Seq[service.QueryEvent]
	ClearSession(sessionID string) error
}

type QueryHandler struct {
	svc RAGService
}

func NewQueryHandler(svc RAGService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []service.Source `json:"sources"`
	SessionID string           `json:"session_id"`
	Truncated bool             `json:"truncated,omitempty"`
}

type TransitionEvent struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Trigger   string   `json:"trigger"`
	ToolNames []string `json:"tool_names,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func resultToResponse(r *service.QueryResult) *QueryResponse {
	sources := r.Sources
	if sources == nil {
		sources = []service.Source{}
	}
	return &QueryResponse{
		Answer:    r.Answer,
		Sources:   sources,
		SessionID: r.SessionID,
		Truncated: r.Truncated,
	}
}

func transitionToEvent(t *service.StateTransition) *TransitionEvent {
	event := &TransitionEvent{
		From:    string(t.From),
		To:      string(t.To),
		Trigger: t.Trigger,
		Error:   t.Data.Error,
	}
	for _, call := range t.Data.ToolCalls {
		event.ToolNames = append(event.ToolNames, call.Name)
	}
	return event
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (*QueryRequest, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if api.BodyTooLarge(w, err) {
			return nil, false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return nil, false
	}
	return &req, true
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	middleware.SetSessionID(r.Context(), result.SessionID)
	api.Success(w, http.StatusOK, resultToResponse(result))
}

// QueryStream answers a query as server-sent events: one "transition" event per
// state change, then a single "answer" or "error" event.
func (h *QueryHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)

	for event := range h.svc.QueryStream(r.Context(), req.Query, req.SessionID) {
		var err error
		switch {
		case event.Transition != nil:
			err = writeSSE(w, "transition", transitionToEvent(event.Transition))
		case event.Result != nil:
			middleware.SetSessionID(r.Context(), event.Result.SessionID)
			err = writeSSE(w, "answer", resultToResponse(event.Result))
		case event.Err != nil:
			err = writeSSE(w, "error", api.ErrorResponse{Error: event.Err.Error()})
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			log.Printf("query stream: client write failed: %v", err)
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (h *QueryHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	middleware.SetSessionID(r.Context(), id)
	if err := h.svc.ClearSession(id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
