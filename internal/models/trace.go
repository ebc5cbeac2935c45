package models

// PipelineState tracks a request through the retrieval pipeline. States
// advance strictly forward; Failed is terminal and reachable from any
// state.
type PipelineState string

const (
	StateReceived   PipelineState = "received"
	StateClassified PipelineState = "classified"
	StateSearched   PipelineState = "searched"
	StateExpanded   PipelineState = "expanded"
	StateReranked   PipelineState = "reranked"
	StateFused      PipelineState = "fused"
	StateGenerated  PipelineState = "generated"
	StateCompleted  PipelineState = "completed"
	StateFailed     PipelineState = "failed"
)

// RetrievalStep records one pipeline stage for the response trace.
type RetrievalStep struct {
	Stage       string         `json:"stage"`
	Description string         `json:"description"`
	DurationMs  int64          `json:"duration_ms"`
	Data        map[string]any `json:"data,omitempty"`
}
