package pipeline

import (
	"fmt"
	"strings"

	"github.com/ternarybob/quaestor/internal/models"
)

const generationSystemPrompt = `You are a maintenance assistant for industrial operations.

Answer the user's question using ONLY the provided context.

Rules:
- Verified facts from the knowledge graph are authoritative; state them directly without citation.
- When you use information from a document excerpt, cite it with its bracketed number, e.g. [1].
- If the context does not contain the answer, say so instead of guessing.
- Be concise and specific. Use exact names, IDs, and values from the context.
- For safety questions, never omit a safety requirement that appears in the context.`

// intentHints steer the answer format per intent.
var intentHints = map[models.Intent]string{
	models.IntentProcedure:       "The user wants step-by-step instructions. Present them as a numbered list.",
	models.IntentTroubleshooting: "The user is diagnosing a problem. Lead with likely causes, then checks to run.",
	models.IntentSafety:          "The user is asking about safety. List every applicable requirement and permit.",
	models.IntentAssetInfo:       "The user wants facts about equipment. Answer with specifics: model, location, status.",
	models.IntentPeople:          "The user is asking who is responsible. Name the people and their roles.",
}

// buildGenerationPrompt lays the fused context out for the model: verified
// graph facts first, then numbered document excerpts matching the citation
// indices in the response sources.
func buildGenerationPrompt(query string, fused models.FusedContext) string {
	var b strings.Builder

	facts := false
	for _, item := range fused.Evidence {
		if item.Fact == nil {
			continue
		}
		if !facts {
			b.WriteString("Verified facts from the knowledge graph:\n")
			facts = true
		}
		b.WriteString("- ")
		b.WriteString(item.Fact.Fact)
		b.WriteString("\n")
	}
	if facts {
		b.WriteString("\n")
	}

	docs := false
	for _, item := range fused.Evidence {
		if item.Chunk == nil {
			continue
		}
		if !docs {
			b.WriteString("Document excerpts:\n")
			docs = true
		}
		fmt.Fprintf(&b, "[%d] %s\n", item.CitationIndex, strings.TrimSpace(item.Chunk.Text))
	}
	if docs {
		b.WriteString("\n")
	}

	if !facts && !docs {
		b.WriteString("No relevant context was found in the knowledge base for this question.\n\n")
	}

	if hint, ok := intentHints[fused.Intent.Intent]; ok {
		b.WriteString(hint)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)

	return b.String()
}
