package models

import "errors"

// Pipeline stage errors. The orchestrator matches these with errors.Is to
// pick a degradation path; wrap them with fmt.Errorf("%w: ...") to add
// detail.
var (
	ErrClassification   = errors.New("intent classification failed")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrGraphUnavailable = errors.New("graph database unavailable")
	ErrGeneration       = errors.New("answer generation failed")
	ErrSessionNotFound  = errors.New("session not found")
)
