package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/models"
)

// Neo4jService implements the GraphStore interface over the Bolt driver.
// All pipeline access is read-only; writes belong to the ingestion tooling
// outside this service.
type Neo4jService struct {
	driver   neo4j.Driver
	database string
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewNeo4jService creates a new Neo4j graph store client.
func NewNeo4jService(config *common.Config, logger arbor.ILogger) (*Neo4jService, error) {
	timeout, err := time.ParseDuration(config.Neo4j.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid neo4j timeout '%s': %w", config.Neo4j.Timeout, err)
	}

	driver, err := neo4j.NewDriver(config.Neo4j.URI, neo4j.BasicAuth(config.Neo4j.User, config.Neo4j.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	database := config.Neo4j.Database
	if database == "" {
		database = "neo4j"
	}

	service := &Neo4jService{
		driver:   driver,
		database: database,
		timeout:  timeout,
		logger:   logger,
	}

	logger.Info().
		Str("uri", config.Neo4j.URI).
		Str("database", database).
		Dur("timeout", timeout).
		Msg("Neo4j graph store client initialized")

	return service, nil
}

// Run executes a read query and returns rows as column-name -> value maps.
func (s *Neo4jService) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(timeoutCtx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(timeoutCtx)

	result, err := session.ExecuteRead(timeoutCtx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(timeoutCtx, cypher, params)
		if err != nil {
			return nil, err
		}

		var rows []map[string]any
		for res.Next(timeoutCtx) {
			record := res.Record()
			row := make(map[string]any, len(record.Keys))
			for i, key := range record.Keys {
				row[key] = record.Values[i]
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Neo4j read query failed")
		return nil, fmt.Errorf("%w: %v", models.ErrGraphUnavailable, err)
	}

	rows, _ := result.([]map[string]any)
	return rows, nil
}

// KnownEntities returns named nodes keyed by entity type for the matcher.
// Chunk nodes are excluded: they are retrieval plumbing, not entities.
func (s *Neo4jService) KnownEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.Run(ctx, `
		MATCH (n)
		WHERE n.name IS NOT NULL AND NOT n:Chunk
		RETURN labels(n)[0] AS label, n.name AS name
		ORDER BY name
		LIMIT 5000
	`, nil)
	if err != nil {
		return nil, err
	}

	entities := make([]models.Entity, 0, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		label, _ := row["label"].(string)
		if name == "" {
			continue
		}
		entityType, ok := labelToEntityType(label)
		if !ok {
			continue
		}
		entities = append(entities, models.Entity{Name: name, Type: entityType})
	}

	return entities, nil
}

// labelToEntityType maps graph node labels onto entity types.
func labelToEntityType(label string) (models.EntityType, bool) {
	switch label {
	case "Person":
		return models.EntityPerson, true
	case "Role":
		return models.EntityRole, true
	case "Asset":
		return models.EntityAsset, true
	case "Component":
		return models.EntityComponent, true
	case "Location":
		return models.EntityLocation, true
	case "Team":
		return models.EntityTeam, true
	case "Document":
		return models.EntityDocument, true
	}
	return "", false
}

// HealthCheck verifies connectivity to the graph database.
func (s *Neo4jService) HealthCheck(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.driver.VerifyConnectivity(timeoutCtx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrGraphUnavailable, err)
	}
	return nil
}

// Close releases the driver.
func (s *Neo4jService) Close(ctx context.Context) error {
	s.logger.Debug().Msg("Closing Neo4j graph store client")
	return s.driver.Close(ctx)
}
