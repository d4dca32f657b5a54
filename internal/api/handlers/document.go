package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/pagination"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/go-chi/chi/v5"
)

// maxUploadMemory is how much of a multipart upload is held in memory before
// spilling to temporary files.
const maxUploadMemory = 8 << 20

type DocumentService interface {
	Submit(ctx context.Context, input service.SubmitDocumentInput) (*domain.IngestJob, error)
	GetJob(ctx context.Context, id string) (*domain.IngestJob, error)
	DocumentURL(ctx context.Context, job *domain.IngestJob) (string, error)
	ListJobs(ctx context.Context, cursor, rawLimit string) (*pagination.Page[*domain.IngestJob], error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type IngestJobResponse struct {
	ID           string  `json:"id"`
	DocumentName string  `json:"document_name"`
	Source       string  `json:"source"`
	Status       string  `json:"status"`
	Retries      int32   `json:"retries"`
	Error        string  `json:"error,omitempty"`
	CourseTitle  string  `json:"course_title,omitempty"`
	ChunkCount   int     `json:"chunk_count"`
	DownloadURL  string  `json:"download_url,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ProcessedAt  *string `json:"processed_at,omitempty"`
}

func jobToResponse(j *domain.IngestJob) *IngestJobResponse {
	resp := &IngestJobResponse{
		ID:           j.ID,
		DocumentName: j.DocumentName,
		Source:       string(j.Source),
		Status:       string(j.Status),
		Retries:      j.Retries,
		Error:        j.Error,
		CourseTitle:  j.CourseTitle,
		ChunkCount:   j.ChunkCount,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		processed := j.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &processed
	}
	return resp
}

// Upload accepts a course document either as the "file" part of a multipart form or
// as the raw request body named by the "name" query parameter, and queues it for
// ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	input, err := readUpload(r)
	if err != nil {
		if api.BodyTooLarge(w, err) {
			return
		}
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.svc.Submit(r.Context(), *input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func readUpload(r *http.Request) (*service.SubmitDocumentInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("file is required")
		}
		defer file.Close()

		body, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		return &service.SubmitDocumentInput{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        body,
		}, nil
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		return nil, errors.New("name is required")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return &service.SubmitDocumentInput{
		Name:        name,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := jobToResponse(job)
	if url, err := h.svc.DocumentURL(r.Context(), job); err == nil {
		resp.DownloadURL = url
	}

	api.Success(w, http.StatusOK, resp)
}

// ListJobs returns ingest jobs newest first. Query parameters: cursor, limit.
func (h *DocumentHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListJobs(r.Context(), q.Get("cursor"), q.Get("limit"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*IngestJobResponse, 0, len(page.Items))
	for _, job := range page.Items {
		items = append(items, jobToResponse(job))
	}

	api.Success(w, http.StatusOK, pagination.Page[*IngestJobResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}
