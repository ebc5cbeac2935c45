package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	LLM         LLMConfig       `toml:"llm"`
	Qdrant      QdrantConfig    `toml:"qdrant"`
	Neo4j       Neo4jConfig     `toml:"neo4j"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Session     SessionConfig   `toml:"session"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// LLMConfig selects and configures the completion/embedding provider.
type LLMConfig struct {
	Provider       string  `toml:"provider"`        // "gemini" or "claude"
	GoogleAPIKey   string  `toml:"google_api_key"`  // Gemini API key (or QUAESTOR_GOOGLE_API_KEY)
	AnthropicKey   string  `toml:"anthropic_key"`   // Claude API key (or ANTHROPIC_API_KEY)
	ChatModel      string  `toml:"chat_model"`      // Completion model name
	EmbedModel     string  `toml:"embed_model"`     // Embedding model name (gemini only)
	EmbedDimension int     `toml:"embed_dimension"` // Must match the Qdrant collection vector size
	Temperature    float32 `toml:"temperature"`     // Generation temperature
	MaxTokens      int     `toml:"max_tokens"`      // Generation token cap
	Timeout        string  `toml:"timeout"`         // Per-call timeout, e.g. "30s"
	ScoreRateLimit float64 `toml:"score_rate_limit"` // Rerank scoring calls per second (0 = unlimited)
}

// QdrantConfig configures the vector index connection.
type QdrantConfig struct {
	BaseURL    string `toml:"base_url"`   // e.g. "http://localhost:6333"
	APIKey     string `toml:"api_key"`    // Optional api-key header
	Collection string `toml:"collection"` // Chunk collection name
	Timeout    string `toml:"timeout"`    // HTTP timeout, e.g. "10s"
}

// Neo4jConfig configures the graph database connection.
type Neo4jConfig struct {
	URI      string `toml:"uri"` // e.g. "bolt://localhost:7687"
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	Timeout  string `toml:"timeout"` // Per-query timeout, e.g. "10s"
}

// RetrievalConfig tunes the pipeline. The fusion weights are deliberately
// configuration, not constants: the overall confidence formula is
// weight_vector*topVectorScore + weight_rerank*topRerankScore +
// weight_intent*intentConfidence.
type RetrievalConfig struct {
	VectorTopK        int     `toml:"vector_top_k"`        // Chunks fetched from the index
	RerankTopK        int     `toml:"rerank_top_k"`        // Evidence kept after reranking
	MaxFacts          int     `toml:"max_facts"`           // Graph facts cap per query
	SeedChunks        int     `toml:"seed_chunks"`         // Chunks used as graph expansion seeds
	WeightVector      float64 `toml:"weight_vector"`       // Confidence weight: top vector score
	WeightRerank      float64 `toml:"weight_rerank"`       // Confidence weight: top rerank score
	WeightIntent      float64 `toml:"weight_intent"`       // Confidence weight: intent confidence
	RerankVectorBlend float64 `toml:"rerank_vector_blend"` // Share of the vector score in a chunk's rerank score
	GraphBaseline     float64 `toml:"graph_baseline"`      // Fallback rerank score for graph facts
	ContextLimit      int     `toml:"context_limit"`       // Evidence pieces included in the generation prompt
	SnippetLength     int     `toml:"snippet_length"`      // Chunk truncation length for prompt context
}

// SessionConfig controls the ephemeral session store.
type SessionConfig struct {
	TTL           string `toml:"ttl"`            // Idle TTL before eviction, e.g. "30m"
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule for the expiry sweep
}

// NewDefaultConfig returns a Config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			ChatModel:      "",
			EmbedModel:     "",
			EmbedDimension: 768,
			Temperature:    0.3,
			MaxTokens:      1024,
			Timeout:        "30s",
			ScoreRateLimit: 10,
		},
		Qdrant: QdrantConfig{
			BaseURL:    "http://localhost:6333",
			Collection: "quaestor_chunks",
			Timeout:    "10s",
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
			Timeout:  "10s",
		},
		Retrieval: RetrievalConfig{
			VectorTopK:        10,
			RerankTopK:        10,
			MaxFacts:          10,
			SeedChunks:        5,
			WeightVector:      0.3,
			WeightRerank:      0.4,
			WeightIntent:      0.3,
			RerankVectorBlend: 0.4,
			GraphBaseline:     0.9,
			ContextLimit:      15,
			SnippetLength:     300,
		},
		Session: SessionConfig{
			TTL:           "30m",
			SweepSchedule: "@every 5m",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then merges each config
// file in order (later files override earlier ones), then applies
// environment variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUAESTOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("QUAESTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("QUAESTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("QUAESTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if provider := os.Getenv("QUAESTOR_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if key := os.Getenv("QUAESTOR_GOOGLE_API_KEY"); key != "" {
		config.LLM.GoogleAPIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" && config.LLM.GoogleAPIKey == "" {
		config.LLM.GoogleAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.AnthropicKey == "" {
		config.LLM.AnthropicKey = key
	}

	if url := os.Getenv("QUAESTOR_QDRANT_URL"); url != "" {
		config.Qdrant.BaseURL = url
	}
	if collection := os.Getenv("QUAESTOR_QDRANT_COLLECTION"); collection != "" {
		config.Qdrant.Collection = collection
	}

	if uri := os.Getenv("QUAESTOR_NEO4J_URI"); uri != "" {
		config.Neo4j.URI = uri
	}
	if user := os.Getenv("QUAESTOR_NEO4J_USER"); user != "" {
		config.Neo4j.User = user
	}
	if password := os.Getenv("QUAESTOR_NEO4J_PASSWORD"); password != "" {
		config.Neo4j.Password = password
	}

	if ttl := os.Getenv("QUAESTOR_SESSION_TTL"); ttl != "" {
		config.Session.TTL = ttl
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks cross-field constraints that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.LLM.Provider != "gemini" && c.LLM.Provider != "claude" {
		return fmt.Errorf("invalid llm provider %q: must be \"gemini\" or \"claude\"", c.LLM.Provider)
	}

	sum := c.Retrieval.WeightVector + c.Retrieval.WeightRerank + c.Retrieval.WeightIntent
	if sum <= 0 {
		return fmt.Errorf("fusion weights must sum to a positive value, got %v", sum)
	}

	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		return fmt.Errorf("invalid session ttl %q: %w", c.Session.TTL, err)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm timeout %q: %w", c.LLM.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Qdrant.Timeout); err != nil {
		return fmt.Errorf("invalid qdrant timeout %q: %w", c.Qdrant.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Neo4j.Timeout); err != nil {
		return fmt.Errorf("invalid neo4j timeout %q: %w", c.Neo4j.Timeout, err)
	}

	if c.Retrieval.VectorTopK <= 0 {
		return fmt.Errorf("retrieval vector_top_k must be positive, got %d", c.Retrieval.VectorTopK)
	}

	return nil
}

// SessionTTL returns the parsed session idle TTL.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// LLMTimeout returns the parsed per-call LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
