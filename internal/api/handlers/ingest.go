package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/service"
)

type FolderIngester interface {
	IngestFolder(ctx context.Context, dir string, clearExisting bool) (*service.IngestReport, error)
}

// IngestHandler re-ingests the configured documents folder on demand.
type IngestHandler struct {
	svc     FolderIngester
	docsDir string
}

func NewIngestHandler(svc FolderIngester, docsDir string) *IngestHandler {
	return &IngestHandler{svc: svc, docsDir: docsDir}
}

type IngestRequest struct {
	Clear bool `json:"clear"`
}

type IngestResponse struct {
	*service.IngestReport
	TotalChunks int `json:"total_chunks"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.docsDir == "" {
		api.Error(w, http.StatusServiceUnavailable, "documents folder is not configured")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.svc.IngestFolder(r.Context(), h.docsDir, req.Clear)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &IngestResponse{
		IngestReport: report,
		TotalChunks:  report.TotalChunks(),
	})
}
