package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const scorerPrompt = `You are a relevance scorer for maintenance documentation.

Score how relevant the given content is to answering the user's query.

Return a JSON object with:
{
  "score": 0.0-1.0,
  "reasoning": "brief explanation"
}

Scoring guidelines:
- 1.0: Directly answers the question with specific details
- 0.7-0.9: Highly relevant, contains key information
- 0.4-0.6: Somewhat relevant, provides context
- 0.1-0.3: Tangentially related
- 0.0: Not relevant`

// scoreConcurrency bounds in-flight scoring calls per rerank.
const scoreConcurrency = 4

// Reranker rescores the union of chunks and graph facts by relevance to the
// query with one LLM scoring call per item. Scoring failures are tolerated
// per item: an unscored chunk keeps its similarity score and an unscored
// fact gets the configured graph baseline, so partial failure never shrinks
// the evidence set.
type Reranker struct {
	llmService interfaces.LLMService
	config     *common.RetrievalConfig
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewReranker creates a new LLM-based reranker
func NewReranker(llmService interfaces.LLMService, config *common.Config, logger arbor.ILogger) *Reranker {
	limit := rate.Inf
	if config.LLM.ScoreRateLimit > 0 {
		limit = rate.Limit(config.LLM.ScoreRateLimit)
	}

	return &Reranker{
		llmService: llmService,
		config:     &config.Retrieval,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

type scorerResponse struct {
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

// Rerank returns the scored union of chunks and facts ordered by descending
// relevance, ties broken graph-before-document.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []models.Chunk, facts []models.GraphFact) ([]models.ScoredEvidence, error) {
	startTime := time.Now()

	evidence := make([]models.ScoredEvidence, 0, len(chunks)+len(facts))
	for i := range chunks {
		chunk := chunks[i]
		evidence = append(evidence, models.ScoredEvidence{
			Chunk:      &chunk,
			Score:      chunk.Score,
			Provenance: models.ProvenanceDocument,
		})
	}
	for i := range facts {
		fact := facts[i]
		evidence = append(evidence, models.ScoredEvidence{
			Fact:       &fact,
			Score:      r.config.GraphBaseline,
			Provenance: models.ProvenanceGraph,
		})
	}

	if len(evidence) == 0 {
		return nil, nil
	}

	failures := 0
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(scoreConcurrency)
	scores := make([]*float64, len(evidence))

	for i := range evidence {
		group.Go(func() error {
			if err := r.limiter.Wait(groupCtx); err != nil {
				return err
			}
			score, err := r.scoreRelevance(groupCtx, query, evidence[i].Text())
			if err != nil {
				// Item keeps its prior score; the pipeline carries on.
				r.logger.Warn().Err(err).Str("provenance", string(evidence[i].Provenance)).Msg("Relevance scoring failed for item")
				return nil
			}
			scores[i] = &score
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		// Only context cancellation reaches here; scoring errors are
		// swallowed per item above.
		return nil, fmt.Errorf("rerank aborted: %w", err)
	}

	for i := range evidence {
		if scores[i] == nil {
			failures++
			continue
		}
		evidence[i].Score = r.finalScore(evidence[i], *scores[i])
	}

	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		// Evidence hierarchy on ties: graph facts before documents.
		return evidence[i].Provenance == models.ProvenanceGraph && evidence[j].Provenance == models.ProvenanceDocument
	})

	if r.config.RerankTopK > 0 && len(evidence) > r.config.RerankTopK {
		evidence = evidence[:r.config.RerankTopK]
	}

	r.logger.Debug().
		Int("items", len(chunks)+len(facts)).
		Int("kept", len(evidence)).
		Int("score_failures", failures).
		Dur("duration", time.Since(startTime)).
		Msg("Reranking completed")

	return evidence, nil
}

// finalScore blends the LLM relevance score with the item's prior signal.
// Chunks blend in their vector similarity; graph facts are deterministic and
// take the relevance score directly.
func (r *Reranker) finalScore(item models.ScoredEvidence, relevance float64) float64 {
	if item.Provenance == models.ProvenanceDocument && item.Chunk != nil {
		blend := r.config.RerankVectorBlend
		return blend*item.Chunk.Score + (1-blend)*relevance
	}
	return relevance
}

// scoreRelevance asks the LLM for a relevance score in [0,1].
func (r *Reranker) scoreRelevance(ctx context.Context, query, content string) (float64, error) {
	snippet := content
	if len(snippet) > 500 {
		cut := 500
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	messages := []interfaces.Message{
		{Role: "system", Content: scorerPrompt},
		{Role: "user", Content: fmt.Sprintf("Query: %s\n\nContent: %s", query, snippet)},
	}

	raw, err := r.llmService.Complete(ctx, messages, interfaces.CompletionOptions{
		JSONResponse: true,
		MaxTokens:    100,
	})
	if err != nil {
		return 0, err
	}

	var parsed scorerResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return 0, fmt.Errorf("unparsable score response: %w", err)
	}
	if parsed.Score == nil || *parsed.Score < 0 || *parsed.Score > 1 {
		return 0, fmt.Errorf("score missing or out of range")
	}

	return *parsed.Score, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
