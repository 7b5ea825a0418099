package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is the Qdrant host.
	DefaultHost = "localhost"
	// DefaultPort is the Qdrant REST port.
	DefaultPort = 6333
	// DefaultCollection is the collection results are written to.
	DefaultCollection = "crawler_collection"
	// DefaultDimension is the vector size of the collection.
	DefaultDimension = 384
	// DefaultLimit is the number of hits a search returns.
	DefaultLimit = 5

	// pointID is the single point a run is stored under. Each crawl
	// recreates the collection, so only the latest run is searchable.
	pointID = 1
)

// Hit is one search result.
type Hit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Store persists text and searches by meaning.
type Store interface {
	Persist(ctx context.Context, text string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// QdrantStore is a Store backed by the Qdrant REST API.
type QdrantStore struct {
	endpoint   string
	collection string
	apiKey     string
	dimension  int
	embedder   Embedder
	httpClient *http.Client
}

// QdrantOption configures a QdrantStore.
type QdrantOption func(*QdrantStore)

// WithCollection sets the collection name.
func WithCollection(name string) QdrantOption {
	return func(s *QdrantStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithAPIKey sends key in the api-key header on every request.
func WithAPIKey(key string) QdrantOption {
	return func(s *QdrantStore) {
		s.apiKey = strings.TrimSpace(key)
	}
}

// WithDimension sets the vector size used when the collection is created.
func WithDimension(n int) QdrantOption {
	return func(s *QdrantStore) {
		if n > 0 {
			s.dimension = n
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) QdrantOption {
	return func(s *QdrantStore) {
		s.httpClient = c
	}
}

// Endpoint builds the REST base URL for host and port.
func Endpoint(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	if port <= 0 {
		port = DefaultPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// NewQdrantStore creates a store against the Qdrant instance at endpoint.
func NewQdrantStore(endpoint string, embedder Embedder, opts ...QdrantOption) (*QdrantStore, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint not configured")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	s := &QdrantStore{
		endpoint:   endpoint,
		collection: DefaultCollection,
		dimension:  DefaultDimension,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Collection returns the collection name.
func (s *QdrantStore) Collection() string {
	return s.collection
}

// Persist embeds text, recreates the collection and stores text as its
// only point.
func (s *QdrantStore) Persist(ctx context.Context, text string) error {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}
	if len(embedding) != s.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(embedding))
	}

	if err := s.recreateCollection(ctx); err != nil {
		return err
	}

	body := map[string]any{
		"points": []any{
			map[string]any{
				"id":      pointID,
				"vector":  embedding,
				"payload": map[string]any{"text": text},
			},
		},
	}
	resp, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body)
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return statusError("qdrant upsert", resp)
	}
	return nil
}

// recreateCollection drops the collection if present and creates it empty.
func (s *QdrantStore) recreateCollection(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return &StatusError{Op: "delete collection", Status: resp.StatusCode}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	resp, err = s.do(ctx, http.MethodPut, s.collectionURL(), body)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return statusError("create collection", resp)
	}
	return nil
}

type searchResponse struct {
	Result []Hit `json:"result"`
}

// Search embeds query and returns the closest points with their payloads.
func (s *QdrantStore) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}

	body := map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
	}
	resp, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, statusError("qdrant search", resp)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Result, nil
}

func (s *QdrantStore) do(ctx context.Context, method, target string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal qdrant payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	return s.httpClient.Do(req)
}

func (s *QdrantStore) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.endpoint, url.PathEscape(s.collection))
}
