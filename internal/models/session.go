package models

import "time"

// EntityType is the kind of a domain entity mentioned in conversation or
// stored as a graph node.
type EntityType string

const (
	EntityPerson    EntityType = "person"
	EntityRole      EntityType = "role"
	EntityAsset     EntityType = "asset"
	EntityComponent EntityType = "component"
	EntityLocation  EntityType = "location"
	EntityTeam      EntityType = "team"
	EntityDocument  EntityType = "document"
)

// IsPerson reports whether the type resolves person pronouns. Roles count:
// "the technician" and "he" both point back at people.
func (t EntityType) IsPerson() bool {
	return t == EntityPerson || t == EntityRole
}

// Entity is a named domain entity with its type.
type Entity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// Turn is one completed exchange in a session. Only successful pipeline
// runs append turns; failed or cancelled requests leave the history
// untouched.
type Turn struct {
	Query     string    `json:"query"`
	Intent    Intent    `json:"intent"`
	Entities  []Entity  `json:"entities,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the ephemeral conversation state for one session ID.
type Session struct {
	ID         string          `json:"id"`
	Turns      []Turn          `json:"turns"`
	CreatedAt  time.Time       `json:"created_at"`
	LastAccess time.Time       `json:"last_access"`
	LastTrace  []RetrievalStep `json:"last_trace,omitempty"`
}
