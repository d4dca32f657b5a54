package ollama

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ollama/ollama/api"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"

	defaultMaxRetries = 3
	requestTimeout    = 30 * time.Second
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI is the part of the Ollama client used for embeddings
type EmbeddingAPI interface {
	Embeddings(ctx context.Context, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error)
}

type Config struct {
	Host       string
	Model      string
	Dimensions int
}

// Embedder generates embeddings with a local Ollama server
type Embedder struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	maxRetries int
	baseDelay  time.Duration
}

// NewEmbedder creates an Embedder for the Ollama server at cfg.Host.
func NewEmbedder(cfg Config) (*Embedder, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	client := api.NewClient(hostURL, &http.Client{Timeout: requestTimeout})
	return NewEmbedderWithAPI(client, cfg), nil
}

// NewEmbedderWithAPI creates an Embedder around an existing API implementation.
func NewEmbedderWithAPI(embeddingAPI EmbeddingAPI, cfg Config) *Embedder {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{
		api:        embeddingAPI,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: defaultMaxRetries,
		baseDelay:  time.Second,
	}
}

// GenerateEmbedding embeds text, retrying transient failures with exponential backoff.
func (e *Embedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	req := &api.EmbeddingRequest{Model: e.model, Prompt: text}

	var (
		attempt   int
		embedding []float64
	)
	operation := func() error {
		attempt++
		resp, err := e.api.Embeddings(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if len(resp.Embedding) == 0 {
			return errors.New("no embedding data returned")
		}
		embedding = resp.Embedding
		return nil
	}
	notify := func(err error, delay time.Duration) {
		log.Printf("ollama: embedding attempt %d/%d failed, retrying in %s: %v", attempt, e.maxRetries, delay, err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(e.maxRetries-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to create embedding after %d attempts: %w", attempt, err)
	}
	return e.toFloat32(embedding)
}

func (e *Embedder) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

func (e *Embedder) toFloat32(embedding []float64) ([]float32, error) {
	if e.dimensions > 0 && len(embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), e.dimensions)
	}
	out := make([]float32, len(embedding))
	for i, v := range embedding {
		out[i] = float32(v)
	}
	return out, nil
}
