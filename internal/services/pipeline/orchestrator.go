package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
	"github.com/ternarybob/quaestor/internal/services/session"
	"golang.org/x/sync/errgroup"
)

// IntentClassifier determines the query intent.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (models.Classification, error)
}

// Reranker rescores the combined evidence by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []models.Chunk, facts []models.GraphFact) ([]models.ScoredEvidence, error)
}

// ContextFuser assembles the final context and composite confidence.
type ContextFuser interface {
	Fuse(classification models.Classification, topVectorScore float64, reranked []models.ScoredEvidence) models.FusedContext
	Snippet(text string) string
}

// Orchestrator drives a query through the retrieval pipeline: classify and
// search concurrently, expand the graph, rerank, fuse, generate. Each
// degraded dependency narrows the evidence instead of failing the request;
// only generation failure and caller cancellation surface as errors, and
// even generation failure carries the partial trace back.
type Orchestrator struct {
	classifier IntentClassifier
	searcher   interfaces.VectorSearcher
	expander   interfaces.GraphExpander
	reranker   Reranker
	fuser      ContextFuser
	matcher    interfaces.EntityMatcher
	llmService interfaces.LLMService
	sessions   interfaces.SessionStore
	config     *common.Config
	logger     arbor.ILogger
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(
	classifier IntentClassifier,
	searcher interfaces.VectorSearcher,
	expander interfaces.GraphExpander,
	reranker Reranker,
	fuser ContextFuser,
	matcher interfaces.EntityMatcher,
	llmService interfaces.LLMService,
	sessions interfaces.SessionStore,
	config *common.Config,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		searcher:   searcher,
		expander:   expander,
		reranker:   reranker,
		fuser:      fuser,
		matcher:    matcher,
		llmService: llmService,
		sessions:   sessions,
		config:     config,
		logger:     logger,
	}
}

// trace accumulates per-stage steps for the response.
type trace struct {
	steps []models.RetrievalStep
}

func (t *trace) add(stage models.PipelineState, start time.Time, description string, data map[string]any) {
	t.steps = append(t.steps, models.RetrievalStep{
		Stage:       string(stage),
		Description: description,
		DurationMs:  time.Since(start).Milliseconds(),
		Data:        data,
	})
}

// Query runs the full pipeline for one request.
func (o *Orchestrator) Query(ctx context.Context, req *interfaces.QueryRequest) (*interfaces.QueryResponse, error) {
	pipelineStart := time.Now()
	tr := &trace{}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Received: load session state and resolve references against it.
	// A missing or expired session just means no history to resolve with.
	stageStart := time.Now()
	sess, err := o.sessions.Get(sessionID)
	if err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Session lookup failed")
	}
	resolved := session.ResolveReferences(req.Message, sess)
	receivedData := map[string]any{"session_id": sessionID}
	if resolved != req.Message {
		receivedData["resolved_query"] = resolved
	}
	tr.add(models.StateReceived, stageStart, "Request received, session resolved", receivedData)

	// Classified + Searched: independent stages, run concurrently. Each
	// degrades on its own; only caller cancellation aborts.
	var (
		classification models.Classification
		chunks         []models.Chunk
		classifyDur    time.Duration
		searchDur      time.Duration
		classifyFailed bool
		indexDown      bool
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		start := time.Now()
		c, err := o.classifier.Classify(groupCtx, resolved)
		classifyDur = time.Since(start)
		if err != nil {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			o.logger.Warn().Err(err).Msg("Classification failed, using default intent")
			classification = models.DefaultClassification()
			classifyFailed = true
			return nil
		}
		classification = c
		return nil
	})
	group.Go(func() error {
		start := time.Now()
		found, err := o.searcher.Search(groupCtx, resolved, o.config.Retrieval.VectorTopK)
		searchDur = time.Since(start)
		if err != nil {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			o.logger.Warn().Err(err).Msg("Vector search failed, continuing graph-only")
			indexDown = true
			return nil
		}
		chunks = found
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}

	tr.steps = append(tr.steps, models.RetrievalStep{
		Stage:       string(models.StateClassified),
		Description: "Intent classified",
		DurationMs:  classifyDur.Milliseconds(),
		Data: map[string]any{
			"intent":     string(classification.Intent),
			"confidence": classification.Confidence,
			"degraded":   classifyFailed,
		},
	})
	tr.steps = append(tr.steps, models.RetrievalStep{
		Stage:       string(models.StateSearched),
		Description: "Vector search completed",
		DurationMs:  searchDur.Milliseconds(),
		Data: map[string]any{
			"chunks":          len(chunks),
			"top_score":       topScore(chunks),
			"index_available": !indexDown,
		},
	})

	// Expanded: intent-directed graph traversal seeded by the query and
	// the retrieved chunks.
	stageStart = time.Now()
	facts, err := o.expander.Expand(ctx, classification.Intent, resolved, chunks)
	graphDown := false
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pipeline cancelled: %w", ctx.Err())
		}
		o.logger.Warn().Err(err).Msg("Graph expansion failed, continuing vector-only")
		graphDown = true
		facts = nil
	}
	tr.add(models.StateExpanded, stageStart, "Graph expansion completed", map[string]any{
		"facts":           len(facts),
		"graph_available": !graphDown,
	})

	// Reranked.
	stageStart = time.Now()
	reranked, err := o.reranker.Rerank(ctx, resolved, chunks, facts)
	if err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}
	tr.add(models.StateReranked, stageStart, "Evidence reranked", map[string]any{
		"evidence": len(reranked),
	})

	// Fused.
	stageStart = time.Now()
	fused := o.fuser.Fuse(classification, topScore(chunks), reranked)
	tr.add(models.StateFused, stageStart, "Context fused", map[string]any{
		"evidence":   len(fused.Evidence),
		"confidence": fused.Confidence,
	})

	resp := o.baseResponse(sessionID, fused, tr)

	// Generated. Generation runs even when retrieval came back empty; the
	// prompt says so and the model is instructed to admit it, with the
	// response confidence already pinned at zero by fusion.
	stageStart = time.Now()
	answer, err := o.generate(ctx, resolved, fused)
	if err != nil {
		tr.add(models.StateFailed, stageStart, "Generation failed", map[string]any{
			"error": err.Error(),
		})
		resp.Message = "Answer generation failed. The retrieval results are included."
		resp.RetrievalSteps = tr.steps
		o.saveSessionState(sessionID, tr)
		return resp, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	resp.Message = answer
	tr.add(models.StateGenerated, stageStart, "Answer generated", map[string]any{
		"low_evidence": fused.NoEvidence,
	})

	// Completed: the turn joins the session history only now, so a failed
	// or cancelled request never pollutes coreference state.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", ctx.Err())
	}
	o.appendTurn(ctx, sessionID, req.Message, classification)
	o.saveSessionState(sessionID, tr)

	resp.RetrievalSteps = tr.steps

	o.logger.Info().
		Str("session_id", sessionID).
		Str("intent", string(classification.Intent)).
		Float64("confidence", resp.Confidence).
		Int("sources", len(resp.Sources)).
		Int("graph_facts", len(resp.GraphFacts)).
		Dur("duration", time.Since(pipelineStart)).
		Msg("Query completed")

	return resp, nil
}

// baseResponse projects the fused context into the response shape shared by
// the success and generation-failure paths.
func (o *Orchestrator) baseResponse(sessionID string, fused models.FusedContext, tr *trace) *interfaces.QueryResponse {
	resp := &interfaces.QueryResponse{
		Intent:         string(fused.Intent.Intent),
		Confidence:     fused.Confidence,
		GraphFacts:     []string{},
		Sources:        []interfaces.Source{},
		RetrievalSteps: tr.steps,
		SessionID:      sessionID,
		LowEvidence:    fused.NoEvidence,
	}
	for _, item := range fused.Evidence {
		switch {
		case item.Fact != nil:
			resp.GraphFacts = append(resp.GraphFacts, item.Fact.Fact)
		case item.Chunk != nil:
			resp.Sources = append(resp.Sources, interfaces.Source{
				Text:     o.fuser.Snippet(item.Chunk.Text),
				Score:    item.Score,
				Metadata: item.Chunk.Metadata,
			})
		}
	}
	return resp
}

// generate prompts the completion model with the fused context.
func (o *Orchestrator) generate(ctx context.Context, query string, fused models.FusedContext) (string, error) {
	messages := []interfaces.Message{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: buildGenerationPrompt(query, fused)},
	}

	answer, err := o.llmService.Complete(ctx, messages, interfaces.CompletionOptions{
		Temperature: o.config.LLM.Temperature,
		MaxTokens:   o.config.LLM.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("empty completion")
	}
	return answer, nil
}

// appendTurn records the completed exchange, with the entities the graph
// recognizes in the query so later turns can resolve references to them.
func (o *Orchestrator) appendTurn(ctx context.Context, sessionID, query string, classification models.Classification) {
	entities, err := o.matcher.Match(ctx, query)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Entity match for session turn failed")
	}

	if _, err := o.sessions.Append(sessionID, models.Turn{
		Query:     query,
		Intent:    classification.Intent,
		Entities:  entities,
		Timestamp: time.Now(),
	}); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to append session turn")
	}
}

func (o *Orchestrator) saveSessionState(sessionID string, tr *trace) {
	if err := o.sessions.SaveTrace(sessionID, tr.steps); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to save retrieval trace")
	}
}

func topScore(chunks []models.Chunk) float64 {
	top := 0.0
	for _, chunk := range chunks {
		if chunk.Score > top {
			top = chunk.Score
		}
	}
	return top
}
