package models

// Intent is the classified purpose of a user query. It selects the graph
// traversal template and shapes the generation prompt.
type Intent string

const (
	IntentProcedure       Intent = "procedure"
	IntentTroubleshooting Intent = "troubleshooting"
	IntentSafety          Intent = "safety"
	IntentAssetInfo       Intent = "asset_info"
	IntentPeople          Intent = "people"
)

// AllIntents returns the closed intent taxonomy.
func AllIntents() []Intent {
	return []Intent{
		IntentProcedure,
		IntentTroubleshooting,
		IntentSafety,
		IntentAssetInfo,
		IntentPeople,
	}
}

// IsValid reports whether the intent is in the taxonomy.
func (i Intent) IsValid() bool {
	switch i {
	case IntentProcedure, IntentTroubleshooting, IntentSafety, IntentAssetInfo, IntentPeople:
		return true
	}
	return false
}

// Classification is a classified query with the model's confidence.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// DefaultClassification is the fallback when classification fails: the
// broadest intent with zero confidence, so downstream weighting discounts
// the intent signal entirely.
func DefaultClassification() Classification {
	return Classification{Intent: IntentAssetInfo, Confidence: 0}
}
