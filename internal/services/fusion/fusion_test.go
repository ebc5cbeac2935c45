package fusion

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/models"
)

func chunkEvidence(text string, score float64) models.ScoredEvidence {
	return models.ScoredEvidence{
		Chunk:      &models.Chunk{Text: text, Score: score},
		Score:      score,
		Provenance: models.ProvenanceDocument,
	}
}

func factEvidence(fact string, score float64) models.ScoredEvidence {
	return models.ScoredEvidence{
		Fact:       &models.GraphFact{Fact: fact, Hops: 1},
		Score:      score,
		Provenance: models.ProvenanceGraph,
	}
}

func TestFuser_CarriesIntentAndVectorScore(t *testing.T) {
	fuser := NewFuser(common.NewDefaultConfig(), common.GetLogger())

	classification := models.Classification{Intent: models.IntentPeople, Confidence: 0.92}

	// Whatever the reranker produced, the original classification and top
	// vector score survive into the fused context.
	tests := []struct {
		name     string
		reranked []models.ScoredEvidence
	}{
		{name: "empty rerank output", reranked: nil},
		{name: "reordered evidence", reranked: []models.ScoredEvidence{
			chunkEvidence("low", 0.1),
			factEvidence("high fact", 0.95),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused := fuser.Fuse(classification, 0.81, tt.reranked)
			assert.Equal(t, classification, fused.Intent)
			assert.InDelta(t, 0.81, fused.TopVectorScore, 1e-9)
		})
	}
}

func TestFuser_ConfidenceFormula(t *testing.T) {
	config := common.NewDefaultConfig()
	fuser := NewFuser(config, common.GetLogger())

	classification := models.Classification{Intent: models.IntentAssetInfo, Confidence: 0.9}
	reranked := []models.ScoredEvidence{
		factEvidence("fact", 0.8),
		chunkEvidence("chunk", 0.6),
	}

	fused := fuser.Fuse(classification, 0.7, reranked)

	wv := config.Retrieval.WeightVector
	wr := config.Retrieval.WeightRerank
	wi := config.Retrieval.WeightIntent
	want := (wv*0.7 + wr*0.8 + wi*0.9) / (wv + wr + wi)
	assert.InDelta(t, want, fused.Confidence, 1e-9)
}

func TestFuser_NoEvidenceMeansZeroConfidence(t *testing.T) {
	fuser := NewFuser(common.NewDefaultConfig(), common.GetLogger())

	fused := fuser.Fuse(models.Classification{Intent: models.IntentSafety, Confidence: 0.95}, 0.9, nil)

	assert.True(t, fused.NoEvidence)
	assert.Zero(t, fused.Confidence)
	assert.Empty(t, fused.Evidence)
}

func TestFuser_GraphBeforeDocumentOnTies(t *testing.T) {
	fuser := NewFuser(common.NewDefaultConfig(), common.GetLogger())

	reranked := []models.ScoredEvidence{
		chunkEvidence("document text", 0.8),
		factEvidence("graph fact", 0.8),
	}

	fused := fuser.Fuse(models.Classification{Intent: models.IntentAssetInfo}, 0.8, reranked)
	require.Len(t, fused.Evidence, 2)
	assert.Equal(t, models.ProvenanceGraph, fused.Evidence[0].Provenance)
	assert.Equal(t, models.ProvenanceDocument, fused.Evidence[1].Provenance)
}

func TestFuser_CitationIndices(t *testing.T) {
	fuser := NewFuser(common.NewDefaultConfig(), common.GetLogger())

	reranked := []models.ScoredEvidence{
		chunkEvidence("first doc", 0.9),
		factEvidence("a fact", 0.85),
		chunkEvidence("second doc", 0.8),
	}

	fused := fuser.Fuse(models.Classification{Intent: models.IntentProcedure}, 0.9, reranked)
	require.Len(t, fused.Evidence, 3)

	// Document evidence is numbered 1..N in final order; graph facts carry
	// no citation.
	citation := 0
	for _, item := range fused.Evidence {
		if item.RequiresCitation() {
			citation++
			assert.Equal(t, citation, item.CitationIndex)
		} else {
			assert.Zero(t, item.CitationIndex)
		}
	}
	assert.Equal(t, 2, citation)
}

func TestFuser_Deduplicates(t *testing.T) {
	fuser := NewFuser(common.NewDefaultConfig(), common.GetLogger())

	reranked := []models.ScoredEvidence{
		chunkEvidence("Same   content here", 0.9),
		chunkEvidence("same content here", 0.7),
		factEvidence("unique fact", 0.8),
	}

	fused := fuser.Fuse(models.Classification{Intent: models.IntentAssetInfo}, 0.9, reranked)
	assert.Len(t, fused.Evidence, 2)
}

func TestFuser_ContextLimit(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Retrieval.ContextLimit = 2
	fuser := NewFuser(config, common.GetLogger())

	reranked := []models.ScoredEvidence{
		chunkEvidence("one", 0.9),
		chunkEvidence("two", 0.8),
		chunkEvidence("three", 0.7),
	}

	fused := fuser.Fuse(models.Classification{Intent: models.IntentAssetInfo}, 0.9, reranked)
	assert.Len(t, fused.Evidence, 2)
}

func TestFuser_Snippet(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Retrieval.SnippetLength = 10
	fuser := NewFuser(config, common.GetLogger())

	assert.Equal(t, "short", fuser.Snippet("short"))
	snippet := fuser.Snippet("this text is much longer than ten characters")
	assert.LessOrEqual(t, len(snippet), 13)
	assert.Contains(t, snippet, "...")
}

func TestFuser_SnippetKeepsRunesIntact(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Retrieval.SnippetLength = 10
	fuser := NewFuser(config, common.GetLogger())

	// The 10th byte falls inside a multi-byte rune; the cut must back off
	// instead of emitting a broken sequence.
	snippet := fuser.Snippet("Pumpe prüfen und Ventil schließen")
	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "...")
}
