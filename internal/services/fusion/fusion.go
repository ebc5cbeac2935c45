package fusion

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/models"
)

// Fuser assembles the final retrieval context from the reranked evidence.
// Two signals from the head of the pipeline always survive into the fused
// context regardless of what happened in between: the original intent
// classification and the top vector similarity score.
type Fuser struct {
	config *common.RetrievalConfig
	logger arbor.ILogger
}

// NewFuser creates a new context fusion service
func NewFuser(config *common.Config, logger arbor.ILogger) *Fuser {
	return &Fuser{
		config: &config.Retrieval,
		logger: logger,
	}
}

// Fuse deduplicates and orders the reranked evidence, computes the composite
// confidence, and assigns citation indices to document evidence in final
// order. An empty evidence set is a valid outcome carrying confidence 0.
func (f *Fuser) Fuse(classification models.Classification, topVectorScore float64, reranked []models.ScoredEvidence) models.FusedContext {
	evidence := f.dedupe(reranked)

	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		return evidence[i].Provenance == models.ProvenanceGraph && evidence[j].Provenance == models.ProvenanceDocument
	})

	if f.config.ContextLimit > 0 && len(evidence) > f.config.ContextLimit {
		evidence = evidence[:f.config.ContextLimit]
	}

	// Citation indices follow final context order and cover document
	// evidence only; graph facts are stated without citation.
	citation := 0
	for i := range evidence {
		if evidence[i].RequiresCitation() {
			citation++
			evidence[i].CitationIndex = citation
		} else {
			evidence[i].CitationIndex = 0
		}
	}

	ctx := models.FusedContext{
		Evidence:       evidence,
		Intent:         classification,
		TopVectorScore: topVectorScore,
		NoEvidence:     len(evidence) == 0,
	}
	ctx.Confidence = f.confidence(ctx)

	f.logger.Debug().
		Str("intent", string(classification.Intent)).
		Int("evidence", len(evidence)).
		Float64("confidence", ctx.Confidence).
		Msg("Context fusion completed")

	return ctx
}

// confidence combines the vector, rerank and intent signals with the
// configured weights. No evidence means no confidence.
func (f *Fuser) confidence(ctx models.FusedContext) float64 {
	if ctx.NoEvidence {
		return 0
	}

	topRerank := 0.0
	for _, item := range ctx.Evidence {
		if item.Score > topRerank {
			topRerank = item.Score
		}
	}

	wv := f.config.WeightVector
	wr := f.config.WeightRerank
	wi := f.config.WeightIntent
	total := wv + wr + wi
	if total <= 0 {
		return 0
	}

	score := (wv*ctx.TopVectorScore + wr*topRerank + wi*ctx.Intent.Confidence) / total
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// dedupe drops evidence whose normalized text duplicates an earlier item.
// The first occurrence wins, so the incoming rerank order decides which
// duplicate survives.
func (f *Fuser) dedupe(items []models.ScoredEvidence) []models.ScoredEvidence {
	seen := make(map[string]bool, len(items))
	result := make([]models.ScoredEvidence, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.Join(strings.Fields(item.Text()), " "))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	return result
}

// Snippet shortens evidence text for response sources. The cut lands on a
// rune boundary so multi-byte characters are never split.
func (f *Fuser) Snippet(text string) string {
	limit := f.config.SnippetLength
	if limit <= 0 || len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return strings.TrimSpace(text[:limit]) + "..."
}
