package session

import (
	"strings"
	"unicode"

	"github.com/ternarybob/quaestor/internal/models"
)

// personPronouns resolve to the most recent person entity in the session.
var personPronouns = map[string]bool{
	"he": true, "him": true, "his": true,
	"she": true, "her": true, "hers": true,
	"they": true, "them": true, "their": true, "theirs": true,
}

// thingPronouns resolve to the most recent non-person entity.
var thingPronouns = map[string]bool{
	"it": true, "its": true, "this": true, "that": true,
}

// genericNouns resolve a bare noun to the most recent entity of the named
// type, so "the pump" after discussing P-101 refers to P-101.
var genericNouns = map[string]models.EntityType{
	"pump":       models.EntityAsset,
	"valve":      models.EntityAsset,
	"compressor": models.EntityAsset,
	"asset":      models.EntityAsset,
	"equipment":  models.EntityAsset,
	"unit":       models.EntityAsset,
	"component":  models.EntityComponent,
	"part":       models.EntityComponent,
	"person":     models.EntityPerson,
	"technician": models.EntityPerson,
	"engineer":   models.EntityPerson,
	"operator":   models.EntityPerson,
	"team":       models.EntityTeam,
	"crew":       models.EntityTeam,
	"document":   models.EntityDocument,
	"procedure":  models.EntityDocument,
	"manual":     models.EntityDocument,
	"site":       models.EntityLocation,
	"location":   models.EntityLocation,
	"area":       models.EntityLocation,
}

// possessives render the antecedent with an apostrophe so the query reads
// naturally after substitution ("his role" becomes "John Smith's role").
var possessives = map[string]bool{
	"his": true, "her": true, "hers": true, "its": true, "their": true, "theirs": true,
}

// ResolveReferences rewrites pronouns and generic nouns in the query against
// the session's prior turns, most recent turn first. Queries without a
// matching antecedent pass through unchanged.
func ResolveReferences(query string, session *models.Session) string {
	if session == nil || len(session.Turns) == 0 {
		return query
	}

	tokens := strings.Fields(query)
	changed := false

	for i, token := range tokens {
		word, prefix, suffix := stripPunct(token)
		lower := strings.ToLower(word)

		var antecedent *models.Entity
		switch {
		case personPronouns[lower]:
			antecedent = lastEntity(session, func(e models.Entity) bool { return e.Type.IsPerson() })
		case thingPronouns[lower]:
			// "this"/"that" followed by a resolvable generic noun is a
			// determiner, not a pronoun; the noun carries the reference.
			if (lower == "this" || lower == "that") && i+1 < len(tokens) {
				next, _, _ := stripPunct(tokens[i+1])
				if entityType, ok := genericNouns[strings.ToLower(next)]; ok {
					if lastEntity(session, func(e models.Entity) bool { return e.Type == entityType }) != nil {
						continue
					}
				}
			}
			antecedent = lastEntity(session, func(e models.Entity) bool { return !e.Type.IsPerson() })
		default:
			if entityType, ok := genericNouns[lower]; ok {
				antecedent = lastEntity(session, func(e models.Entity) bool { return e.Type == entityType })
			}
		}
		if antecedent == nil {
			continue
		}

		replacement := antecedent.Name
		if possessives[lower] {
			replacement += "'s"
		}
		tokens[i] = prefix + replacement + suffix
		changed = true
	}

	if !changed {
		return query
	}
	return strings.Join(tokens, " ")
}

// lastEntity scans turns newest-first for the most recent entity matching
// the predicate.
func lastEntity(session *models.Session, match func(models.Entity) bool) *models.Entity {
	for i := len(session.Turns) - 1; i >= 0; i-- {
		entities := session.Turns[i].Entities
		for j := len(entities) - 1; j >= 0; j-- {
			if match(entities[j]) {
				return &entities[j]
			}
		}
	}
	return nil
}

// stripPunct splits a token into leading punctuation, the core word and
// trailing punctuation.
func stripPunct(token string) (word, prefix, suffix string) {
	runes := []rune(token)
	start := 0
	for start < len(runes) && !unicode.IsLetter(runes[start]) && !unicode.IsDigit(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsDigit(runes[end-1]) {
		end--
	}
	return string(runes[start:end]), string(runes[:start]), string(runes[end:])
}
