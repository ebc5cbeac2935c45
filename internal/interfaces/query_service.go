package interfaces

import (
	"context"

	"github.com/ternarybob/quaestor/internal/models"
)

// QueryRequest is the inbound generation request.
type QueryRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=4000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

// Source is one cited document chunk in the response.
type Source struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResponse is the structured answer. Failures are also returned in this
// shape (never a bare transport error) with whatever retrieval steps
// completed before the failure.
type QueryResponse struct {
	Message        string                 `json:"message"`
	Intent         string                 `json:"intent"`
	Confidence     float64                `json:"confidence"`
	GraphFacts     []string               `json:"graph_facts"`
	Sources        []Source               `json:"sources"`
	RetrievalSteps []models.RetrievalStep `json:"retrieval_steps"`
	SessionID      string                 `json:"session_id"`
	LowEvidence    bool                   `json:"low_evidence,omitempty"`
}

// QueryService runs the full retrieval pipeline for one query.
type QueryService interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
}
