package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/handlers"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/services/fusion"
	"github.com/ternarybob/quaestor/internal/services/graph"
	"github.com/ternarybob/quaestor/internal/services/intent"
	"github.com/ternarybob/quaestor/internal/services/llm"
	"github.com/ternarybob/quaestor/internal/services/pipeline"
	"github.com/ternarybob/quaestor/internal/services/rerank"
	"github.com/ternarybob/quaestor/internal/services/session"
	"github.com/ternarybob/quaestor/internal/services/status"
	"github.com/ternarybob/quaestor/internal/services/vector"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// External dependencies
	LLMService interfaces.LLMService
	Index      interfaces.VectorIndex
	Graph      interfaces.GraphStore

	// Pipeline services
	Classifier    *intent.Classifier
	Searcher      interfaces.VectorSearcher
	Matcher       interfaces.EntityMatcher
	Expander      interfaces.GraphExpander
	Reranker      *rerank.Reranker
	Fuser         *fusion.Fuser
	SessionStore  interfaces.SessionStore
	QueryService  interfaces.QueryService
	StatusService *status.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	QueryHandler  *handlers.QueryHandler
	StatusHandler *handlers.StatusHandler

	sweeper *cron.Cron
}

// New creates the application with all services wired
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := a.initServices(); err != nil {
		return nil, err
	}
	a.initHandlers()
	if err := a.startSweeper(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("qdrant", cfg.Qdrant.BaseURL).
		Str("neo4j", cfg.Neo4j.URI).
		Msg("Application initialized")

	return a, nil
}

func (a *App) initServices() error {
	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	a.LLMService = llmService

	index, err := vector.NewQdrantService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create vector index client: %w", err)
	}
	a.Index = index

	graphStore, err := graph.NewNeo4jService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create graph store: %w", err)
	}
	a.Graph = graphStore

	sessions, err := session.NewStore(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	a.SessionStore = sessions

	a.Classifier = intent.NewClassifier(a.LLMService, a.Logger)
	a.Searcher = vector.NewSearcher(a.LLMService, a.Index, a.Logger)
	a.Matcher = graph.NewSubstringMatcher(a.Graph, a.Logger)
	a.Expander = graph.NewExpander(a.Graph, a.Matcher, a.Config, a.Logger)
	a.Reranker = rerank.NewReranker(a.LLMService, a.Config, a.Logger)
	a.Fuser = fusion.NewFuser(a.Config, a.Logger)

	a.QueryService = pipeline.NewOrchestrator(
		a.Classifier,
		a.Searcher,
		a.Expander,
		a.Reranker,
		a.Fuser,
		a.Matcher,
		a.LLMService,
		a.SessionStore,
		a.Config,
		a.Logger,
	)

	a.StatusService = status.NewService(a.LLMService, a.Index, a.Graph, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.QueryHandler = handlers.NewQueryHandler(a.QueryService, a.SessionStore, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
}

// startSweeper schedules the periodic session expiry sweep.
func (a *App) startSweeper() error {
	a.sweeper = cron.New()
	_, err := a.sweeper.AddFunc(a.Config.Session.SweepSchedule, func() {
		if err := a.SessionStore.Sweep(); err != nil {
			a.Logger.Warn().Err(err).Msg("Session sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", a.Config.Session.SweepSchedule, err)
	}
	a.sweeper.Start()
	return nil
}

// Close shuts down all services in reverse dependency order
func (a *App) Close() error {
	if a.sweeper != nil {
		stopCtx := a.sweeper.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Session sweeper did not stop in time")
		}
	}

	if a.SessionStore != nil {
		if err := a.SessionStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close session store")
		}
	}

	if a.Graph != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Graph.Close(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close graph store")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
