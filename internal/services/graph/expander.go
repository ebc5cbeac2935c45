package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

// pathTemplate is one statically-defined traversal of the multi-view graph.
// Templates are an explicit lookup table keyed by intent: given the same
// intent and entity set the chosen templates, and their order, never vary.
type pathTemplate struct {
	Name      string
	Pattern   string // human-readable path pattern, used in traces
	Cypher    string
	Hops      int
	SeedTypes []models.EntityType
	Render    func(row map[string]any) (string, []models.PathSegment)
}

// accepts reports whether the template takes the entity type as a seed.
func (t pathTemplate) accepts(entityType models.EntityType) bool {
	for _, seedType := range t.SeedTypes {
		if seedType == entityType {
			return true
		}
	}
	return false
}

// templateTable returns the traversal templates per intent, in the order
// they are walked. Multi-hop templates render the intermediate node into the
// fact sentence so role context is never silently dropped.
func templateTable() map[models.Intent][]pathTemplate {
	personRoleAsset := pathTemplate{
		Name:    "person_role_asset",
		Pattern: "Person-HAS_ROLE->Role-RESPONSIBLE_FOR->Asset",
		Cypher: `MATCH (p:Person)-[:HAS_ROLE]->(r:Role)-[:RESPONSIBLE_FOR]->(a:Asset)
			WHERE p.name = $name OR r.name = $name OR a.name = $name
			RETURN p.name AS person, r.name AS role, a.name AS asset
			LIMIT 10`,
		Hops:      2,
		SeedTypes: []models.EntityType{models.EntityPerson, models.EntityRole, models.EntityAsset},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			person := rowString(row, "person")
			role := rowString(row, "role")
			asset := rowString(row, "asset")
			fact := fmt.Sprintf("%s (%s) is responsible for %s", person, role, asset)
			return fact, []models.PathSegment{
				{StartLabel: "Person", StartName: person, Relation: "HAS_ROLE", EndLabel: "Role", EndName: role},
				{StartLabel: "Role", StartName: role, Relation: "RESPONSIBLE_FOR", EndLabel: "Asset", EndName: asset},
			}
		},
	}

	personTeam := pathTemplate{
		Name:    "person_team",
		Pattern: "Person-MEMBER_OF->Team",
		Cypher: `MATCH (p:Person {name: $name})-[:MEMBER_OF]->(t:Team)
			RETURN p.name AS person, t.name AS team
			LIMIT 10`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityPerson},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			person := rowString(row, "person")
			team := rowString(row, "team")
			fact := fmt.Sprintf("%s is a member of %s", person, team)
			return fact, []models.PathSegment{
				{StartLabel: "Person", StartName: person, Relation: "MEMBER_OF", EndLabel: "Team", EndName: team},
			}
		},
	}

	assetComponent := pathTemplate{
		Name:    "asset_component",
		Pattern: "Asset-HAS_COMPONENT->Component",
		Cypher: `MATCH (a:Asset {name: $name})-[:HAS_COMPONENT]->(c:Component)
			RETURN a.name AS asset, c.name AS component
			LIMIT 25`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityAsset},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			asset := rowString(row, "asset")
			component := rowString(row, "component")
			fact := fmt.Sprintf("%s has component %s", asset, component)
			return fact, []models.PathSegment{
				{StartLabel: "Asset", StartName: asset, Relation: "HAS_COMPONENT", EndLabel: "Component", EndName: component},
			}
		},
	}

	assetLocation := pathTemplate{
		Name:    "asset_location",
		Pattern: "Asset-LOCATED_AT->Location",
		Cypher: `MATCH (a:Asset {name: $name})-[:LOCATED_AT]->(l:Location)
			RETURN a.name AS asset, l.name AS location
			LIMIT 10`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityAsset},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			asset := rowString(row, "asset")
			location := rowString(row, "location")
			fact := fmt.Sprintf("%s is located at %s", asset, location)
			return fact, []models.PathSegment{
				{StartLabel: "Asset", StartName: asset, Relation: "LOCATED_AT", EndLabel: "Location", EndName: location},
			}
		},
	}

	documentAsset := pathTemplate{
		Name:    "document_asset",
		Pattern: "Document-APPLIES_TO->Asset",
		Cypher: `MATCH (d:Document)-[:APPLIES_TO]->(a:Asset {name: $name})
			RETURN coalesce(d.title, d.name) AS document, a.name AS asset
			LIMIT 10`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityAsset},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			document := rowString(row, "document")
			asset := rowString(row, "asset")
			fact := fmt.Sprintf("%s applies to %s", document, asset)
			return fact, []models.PathSegment{
				{StartLabel: "Document", StartName: document, Relation: "APPLIES_TO", EndLabel: "Asset", EndName: asset},
			}
		},
	}

	componentMentions := pathTemplate{
		Name:    "component_mentions",
		Pattern: "Chunk-MENTIONS->Component",
		Cypher: `MATCH (ch:Chunk)-[:MENTIONS]->(c:Component {name: $name})
			RETURN c.name AS component, count(ch) AS mentions`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityComponent},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			component := rowString(row, "component")
			mentions := rowInt(row, "mentions")
			if mentions == 0 {
				return "", nil
			}
			fact := fmt.Sprintf("%s is referenced in %d procedure passages", component, mentions)
			return fact, []models.PathSegment{
				{StartLabel: "Chunk", StartName: "procedure passages", Relation: "MENTIONS", EndLabel: "Component", EndName: component},
			}
		},
	}

	safetyOversight := pathTemplate{
		Name:    "safety_oversight",
		Pattern: "Person-SAFETY_OVERSIGHT->Asset",
		Cypher: `MATCH (p:Person)-[:SAFETY_OVERSIGHT]->(a:Asset)
			WHERE p.name = $name OR a.name = $name
			RETURN p.name AS person, a.name AS asset
			LIMIT 10`,
		Hops:      1,
		SeedTypes: []models.EntityType{models.EntityPerson, models.EntityAsset},
		Render: func(row map[string]any) (string, []models.PathSegment) {
			person := rowString(row, "person")
			asset := rowString(row, "asset")
			fact := fmt.Sprintf("%s has safety oversight of %s", person, asset)
			return fact, []models.PathSegment{
				{StartLabel: "Person", StartName: person, Relation: "SAFETY_OVERSIGHT", EndLabel: "Asset", EndName: asset},
			}
		},
	}

	return map[models.Intent][]pathTemplate{
		models.IntentPeople:          {personRoleAsset, personTeam},
		models.IntentAssetInfo:       {assetComponent, assetLocation},
		models.IntentProcedure:       {documentAsset, componentMentions},
		models.IntentTroubleshooting: {documentAsset, componentMentions},
		models.IntentSafety:          {safetyOversight, assetLocation},
	}
}

// Expander walks the multi-view graph with the intent-selected traversal
// templates and renders the results as natural-language facts.
type Expander struct {
	store     interfaces.GraphStore
	matcher   interfaces.EntityMatcher
	templates map[models.Intent][]pathTemplate
	config    *common.RetrievalConfig
	logger    arbor.ILogger
}

// NewExpander creates a new graph expander
func NewExpander(store interfaces.GraphStore, matcher interfaces.EntityMatcher, config *common.Config, logger arbor.ILogger) *Expander {
	return &Expander{
		store:     store,
		matcher:   matcher,
		templates: templateTable(),
		config:    &config.Retrieval,
		logger:    logger,
	}
}

// Expand collects structured facts for the query. Facts come back ordered by
// path specificity (more hops first), then by template order; duplicates are
// dropped by fact text. An empty result is a valid "no structured evidence"
// outcome. Connectivity failures surface as models.ErrGraphUnavailable.
func (e *Expander) Expand(ctx context.Context, intent models.Intent, query string, chunks []models.Chunk) ([]models.GraphFact, error) {
	startTime := time.Now()

	templates, ok := e.templates[intent]
	if !ok {
		templates = e.templates[models.IntentAssetInfo]
	}

	entities, err := e.matcher.Match(ctx, mentionText(query, chunks, e.config.SeedChunks))
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		e.logger.Debug().Str("intent", string(intent)).Msg("No entity mentions recognized, no structured evidence")
		return nil, nil
	}

	var facts []models.GraphFact
	seen := make(map[string]bool)

	for _, template := range templates {
		for _, entity := range entities {
			if !template.accepts(entity.Type) {
				continue
			}

			rows, err := e.store.Run(ctx, template.Cypher, map[string]any{"name": entity.Name})
			if err != nil {
				return nil, err
			}

			for _, row := range rows {
				fact, path := template.Render(row)
				if fact == "" || seen[fact] {
					continue
				}
				seen[fact] = true
				facts = append(facts, models.GraphFact{
					Fact: fact,
					Path: path,
					Hops: template.Hops,
				})
			}
		}
	}

	// Higher-specificity paths first; the stable sort keeps template order
	// within each hop count.
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Hops > facts[j].Hops
	})

	if e.config.MaxFacts > 0 && len(facts) > e.config.MaxFacts {
		facts = facts[:e.config.MaxFacts]
	}

	e.logger.Debug().
		Str("intent", string(intent)).
		Int("entities", len(entities)).
		Int("facts", len(facts)).
		Dur("duration", time.Since(startTime)).
		Msg("Graph expansion completed")

	return facts, nil
}

// mentionText builds the text the matcher scans: the query, entity hints
// carried on the chunks, and the text of the top seed chunks.
func mentionText(query string, chunks []models.Chunk, seedChunks int) string {
	var b strings.Builder
	b.WriteString(query)

	if seedChunks <= 0 {
		seedChunks = 5
	}

	for i, chunk := range chunks {
		if i >= seedChunks {
			break
		}
		for _, entity := range chunk.Entities {
			b.WriteString("\n")
			b.WriteString(entity)
		}
		b.WriteString("\n")
		b.WriteString(chunk.Text)
	}

	return b.String()
}

func rowString(row map[string]any, key string) string {
	if value, ok := row[key].(string); ok {
		return value
	}
	return "unknown"
}

func rowInt(row map[string]any, key string) int64 {
	switch value := row[key].(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	}
	return 0
}
