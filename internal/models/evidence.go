package models

import "fmt"

// Provenance tags where a piece of evidence came from. Graph facts outrank
// document chunks at equal relevance because they are structured and
// verified against the knowledge graph.
type Provenance string

const (
	ProvenanceGraph    Provenance = "graph"
	ProvenanceDocument Provenance = "document"
)

// Chunk is a document fragment returned by the vector index.
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id,omitempty"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Entities   []string       `json:"entities,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PathSegment is one relationship hop in a graph traversal path.
type PathSegment struct {
	StartLabel string `json:"start_label"`
	StartName  string `json:"start_name"`
	Relation   string `json:"relation"`
	EndLabel   string `json:"end_label"`
	EndName    string `json:"end_name"`
}

// GraphFact is a natural-language rendering of a traversal result, with the
// path that produced it.
type GraphFact struct {
	Fact string        `json:"fact"`
	Path []PathSegment `json:"path,omitempty"`
	Hops int           `json:"hops"`
}

// ScoredEvidence is one reranked piece of context, either a chunk or a
// graph fact, never both.
type ScoredEvidence struct {
	Chunk         *Chunk     `json:"chunk,omitempty"`
	Fact          *GraphFact `json:"fact,omitempty"`
	Score         float64    `json:"score"`
	Provenance    Provenance `json:"provenance"`
	CitationIndex int        `json:"citation_index,omitempty"`
}

// Text returns the evidence content used for scoring and prompting.
func (e ScoredEvidence) Text() string {
	if e.Chunk != nil {
		return e.Chunk.Text
	}
	if e.Fact != nil {
		return e.Fact.Fact
	}
	return ""
}

// RequiresCitation reports whether the item carries a citation index in the
// generation prompt. Document chunks do; graph facts are stated directly.
func (e ScoredEvidence) RequiresCitation() bool {
	return e.Provenance == ProvenanceDocument
}

// String implements fmt.Stringer for trace payloads.
func (e ScoredEvidence) String() string {
	return fmt.Sprintf("[%s %.3f] %s", e.Provenance, e.Score, e.Text())
}

// FusedContext is the assembled retrieval context handed to generation. The
// intent classification and top vector score are carried through from the
// head of the pipeline untouched, whatever the later stages did.
type FusedContext struct {
	Evidence       []ScoredEvidence `json:"evidence"`
	Intent         Classification   `json:"intent"`
	TopVectorScore float64          `json:"top_vector_score"`
	Confidence     float64          `json:"confidence"`
	NoEvidence     bool             `json:"no_evidence"`
}
