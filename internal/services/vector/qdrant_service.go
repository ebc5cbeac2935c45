package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/models"
)

// QdrantService implements the VectorIndex interface against Qdrant's REST
// API. Chunk text and metadata live in the point payload; the similarity
// score comes back with each scored point.
type QdrantService struct {
	config  *common.QdrantConfig
	baseURL string
	client  *http.Client
	logger  arbor.ILogger
}

// NewQdrantService creates a Qdrant-backed vector index client.
func NewQdrantService(config *common.Config, logger arbor.ILogger) (*QdrantService, error) {
	if config.Qdrant.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	timeout, err := time.ParseDuration(config.Qdrant.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant timeout '%s': %w", config.Qdrant.Timeout, err)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(config.Qdrant.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}

	service := &QdrantService{
		config:  &config.Qdrant,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}

	logger.Info().
		Str("base_url", baseURL).
		Str("collection", config.Qdrant.Collection).
		Dur("timeout", timeout).
		Msg("Qdrant vector index client initialized")

	return service, nil
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
	Status any           `json:"status"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search returns the top-k nearest chunks for the query vector. Results keep
// Qdrant's descending-similarity order; equal scores retain the index's
// stable insertion ordering.
func (s *QdrantService) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if k <= 0 {
		k = 10
	}

	body, err := json.Marshal(searchRequest{
		Vector:      vector,
		Limit:       k,
		WithPayload: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.config.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Qdrant search request failed")
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.logger.Warn().Int("status", resp.StatusCode).Str("body", string(data)).Msg("Qdrant search returned error status")
		return nil, fmt.Errorf("%w: search returned status %d", models.ErrIndexUnavailable, resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode search response: %v", models.ErrIndexUnavailable, err)
	}

	chunks := make([]models.Chunk, 0, len(result.Result))
	for _, point := range result.Result {
		chunks = append(chunks, pointToChunk(point))
	}

	s.logger.Debug().
		Int("requested", k).
		Int("returned", len(chunks)).
		Msg("Qdrant search completed")

	return chunks, nil
}

// pointToChunk maps a scored Qdrant point onto a chunk. Payload key variants
// ("text"/"content", "document_id"/"doc_id") are tolerated because ingestion
// pipelines have used both.
func pointToChunk(point scoredPoint) models.Chunk {
	chunk := models.Chunk{
		ID:    fmt.Sprintf("%v", point.ID),
		Score: point.Score,
	}

	payload := point.Payload
	if payload == nil {
		return chunk
	}

	if text, ok := payload["text"].(string); ok {
		chunk.Text = text
	} else if content, ok := payload["content"].(string); ok {
		chunk.Text = content
	}

	if docID, ok := payload["document_id"].(string); ok {
		chunk.DocumentID = docID
	} else if docID, ok := payload["doc_id"].(string); ok {
		chunk.DocumentID = docID
	}

	if raw, ok := payload["entities"].([]any); ok {
		for _, v := range raw {
			if name, ok := v.(string); ok {
				chunk.Entities = append(chunk.Entities, name)
			}
		}
	}

	metadata := make(map[string]any)
	for key, value := range payload {
		switch key {
		case "text", "content", "entities":
			continue
		}
		metadata[key] = value
	}
	if len(metadata) > 0 {
		chunk.Metadata = metadata
	}

	return chunk
}

// HealthCheck verifies connectivity to the Qdrant instance.
func (s *QdrantService) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health check returned status %d", models.ErrIndexUnavailable, resp.StatusCode)
	}

	return nil
}
