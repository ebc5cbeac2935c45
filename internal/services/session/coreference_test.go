package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/quaestor/internal/models"
)

func historyWith(turns ...models.Turn) *models.Session {
	return &models.Session{
		ID:         "s1",
		Turns:      turns,
		CreatedAt:  time.Now(),
		LastAccess: time.Now(),
	}
}

func TestResolveReferences(t *testing.T) {
	johnSmith := models.Entity{Name: "John Smith", Type: models.EntityPerson}
	p101 := models.Entity{Name: "P-101", Type: models.EntityAsset}
	impeller := models.Entity{Name: "Impeller", Type: models.EntityComponent}

	tests := []struct {
		name    string
		query   string
		session *models.Session
		want    string
	}{
		{
			name:    "possessive pronoun resolves to person",
			query:   "What is his role?",
			session: historyWith(models.Turn{Query: "Who maintains pump P-101?", Entities: []models.Entity{johnSmith, p101}}),
			want:    "What is John Smith's role?",
		},
		{
			name:    "subject pronoun resolves to person",
			query:   "Where does he work?",
			session: historyWith(models.Turn{Query: "Tell me about John Smith", Entities: []models.Entity{johnSmith}}),
			want:    "Where does John Smith work?",
		},
		{
			name:    "it resolves to most recent non-person entity",
			query:   "Where is it located?",
			session: historyWith(models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{johnSmith, p101}}),
			want:    "Where is P-101 located?",
		},
		{
			name:    "generic noun resolves by type",
			query:   "How do I service the pump?",
			session: historyWith(models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{p101}}),
			want:    "How do I service the P-101?",
		},
		{
			name:    "generic component noun",
			query:   "Is the component worn?",
			session: historyWith(models.Turn{Query: "Check the impeller", Entities: []models.Entity{impeller}}),
			want:    "Is the Impeller worn?",
		},
		{
			name:  "recency wins across turns",
			query: "What is its status?",
			session: historyWith(
				models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{p101}},
				models.Turn{Query: "Check the impeller", Entities: []models.Entity{impeller}},
			),
			want: "What is Impeller's status?",
		},
		{
			name:    "determiner before generic noun resolves once",
			query:   "What is the status of that pump?",
			session: historyWith(models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{p101}}),
			want:    "What is the status of that P-101?",
		},
		{
			name:    "determiner before unresolvable noun still acts as pronoun",
			query:   "Is that equipment running?",
			session: historyWith(models.Turn{Query: "Check the impeller", Entities: []models.Entity{impeller}}),
			want:    "Is Impeller equipment running?",
		},
		{
			name:    "no antecedent passes through",
			query:   "Where is it?",
			session: historyWith(models.Turn{Query: "Hello"}),
			want:    "Where is it?",
		},
		{
			name:    "nil session passes through",
			query:   "What is his role?",
			session: nil,
			want:    "What is his role?",
		},
		{
			name:    "person pronoun ignores assets",
			query:   "Who is he?",
			session: historyWith(models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{p101}}),
			want:    "Who is he?",
		},
		{
			name:    "punctuation preserved",
			query:   "Where is it?",
			session: historyWith(models.Turn{Query: "Tell me about P-101", Entities: []models.Entity{p101}}),
			want:    "Where is P-101?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveReferences(tt.query, tt.session)
			assert.Equal(t, tt.want, got)
		})
	}
}
