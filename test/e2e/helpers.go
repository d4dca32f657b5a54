//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/coursechat/internal/api/handlers"
	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/jobs"
	"github.com/cloo-solutions/coursechat/internal/repository"
	"github.com/cloo-solutions/coursechat/internal/server"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/cloo-solutions/coursechat/internal/storage"
	"github.com/cloo-solutions/coursechat/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	adminToken    = "e2e-admin-token"
	embeddingDims = 32
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Chat         *scriptedChat
	DocsDir      string
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, an ingest worker and
// the API server. The chat model is scripted; embeddings are a deterministic word hash.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "e2e-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Chat:       &scriptedChat{},
		DocsDir:    t.TempDir(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer()
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) startServer() (string, func()) {
	t := e.T

	courses := repository.NewCourseRepository(e.Pool)
	ingestJobs := repository.NewIngestJobRepository(e.Pool)
	embedder := hashEmbedder{}

	ingestion, err := service.NewIngestionService(embedder, courses, repository.NewTxRunner(e.Pool), service.IngestionConfig{
		Chunk:   service.ChunkConfig{ChunkSize: 300, ChunkOverlap: 50},
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("failed to create ingestion service: %v", err)
	}

	searchSvc := service.NewSearchService(embedder, repository.NewSearchRepository(e.Pool), 5).
		WithSearchLog(repository.NewSearchLogRepository(e.Pool))
	tools := service.NewToolManager(searchSvc, courses)
	ragSvc := service.NewRAGService(
		service.NewGenerator(e.Chat, tools, 3),
		service.NewSessionManager(2),
		courses,
		searchSvc,
	)
	documentSvc := service.NewDocumentService(ingestJobs, e.S3Client, ingestion)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   service.NewAuthService(adminToken),
		QueryHandler:    handlers.NewQueryHandler(ragSvc),
		CourseHandler:   handlers.NewCourseHandler(ragSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		IngestHandler:   handlers.NewIngestHandler(ingestion, e.DocsDir),
	})

	workerCtx, cancel := context.WithCancel(e.Ctx)
	worker := jobs.NewWorker("ingest", jobs.NewIngestWorker(ingestJobs, documentSvc), 200*time.Millisecond)
	go worker.Start(workerCtx)

	srv := httptest.NewServer(router)
	return srv.URL, func() {
		srv.Close()
		cancel()
		worker.Stop()
	}
}

// hashEmbedder maps each word to a bucket so texts sharing words land close together.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?'\"()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// scriptedChat replays queued responses in order and records every request. With an
// empty queue it answers "ok".
type scriptedChat struct {
	mu        sync.Mutex
	responses []*domain.ChatResponse
	requests  []domain.ChatRequest
}

func (c *scriptedChat) Enqueue(responses ...*domain.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, responses...)
}

func (c *scriptedChat) Requests() []domain.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChatRequest(nil), c.requests...)
}

func (c *scriptedChat) CreateChat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return answer("ok"), nil
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func answer(text string) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message:    domain.ChatMessage{Role: domain.RoleAssistant, Content: text},
		StopReason: domain.StopReasonEndTurn,
	}
}

func toolCall(id, name string, args any) *domain.ChatResponse {
	raw, _ := json.Marshal(args)
	return &domain.ChatResponse{
		Message: domain.ChatMessage{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: raw}},
		},
		StopReason: domain.StopReasonToolUse,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &APIResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("request failed (status %d): %s", resp.StatusCode, out.Error)
	}
	return out, nil
}

// UploadDocument posts a course document as a multipart upload.
func (e *E2ETestEnv) UploadDocument(name, content string) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+"/api/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return e.send(req)
}

// JobStatus is the subset of an ingest job the tests look at.
type JobStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	Error       string `json:"error"`
	CourseTitle string `json:"course_title"`
	ChunkCount  int    `json:"chunk_count"`
	DownloadURL string `json:"download_url"`
}

// WaitForJob polls a job until it completes or fails.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) *JobStatus {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := e.Get("/api/jobs/" + id)
		if err != nil {
			e.T.Fatalf("failed to get job %s: %v", id, err)
		}
		var job JobStatus
		if err := json.Unmarshal(resp.Data, &job); err != nil {
			e.T.Fatalf("failed to parse job: %v", err)
		}
		if job.Status == "completed" || job.Status == "failed" {
			return &job
		}
		if time.Now().After(deadline) {
			e.T.Fatalf("job %s still %s after %v", id, job.Status, timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// BuildBinaries builds the coursechat CLI
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "coursechat-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "coursechat"), "./cmd/coursechat")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build coursechat: %v\n%s", err, out)
	}
}

// RunCLI runs the coursechat CLI against the test server with an isolated config dir.
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	configHome := filepath.Join(e.BinaryDir, "config")
	cmd := exec.Command(filepath.Join(e.BinaryDir, "coursechat"), args...)
	cmd.Env = append(os.Environ(),
		"COURSECHAT_API_URL="+e.ServerURL,
		"COURSECHAT_ADMIN_TOKEN="+adminToken,
		"XDG_CONFIG_HOME="+configHome,
		"HOME="+configHome,
		"NO_COLOR=1",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
