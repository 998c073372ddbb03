package types

import "slices"

// Method names how a MatchResult was decided. The set is fixed.
type Method string

const (
	MethodExact         Method = "exact"
	MethodOverride      Method = "override"
	MethodVector        Method = "vector"
	MethodLexical       Method = "lexical"
	MethodLowConfidence Method = "vector-low-confidence"
	MethodArbitrated    Method = "vector+llm"
	MethodUnmatched     Method = "unmatched"
)

var allMethods = []Method{
	MethodExact, MethodOverride, MethodVector, MethodLexical,
	MethodLowConfidence, MethodArbitrated, MethodUnmatched,
}

// Valid reports whether m is one of the fixed methods
func (m Method) Valid() bool {
	return slices.Contains(allMethods, m)
}

// Evidence tags attached to results
const (
	EvidenceOverride           = "override-rule"
	EvidenceExactID            = "exact-id"
	EvidenceExactExternalID    = "exact-external-id"
	EvidenceExactEmail         = "exact-email"
	EvidenceExactSenderEmail   = "exact-sender-email"
	EvidenceExactDomain        = "exact-domain"
	EvidenceExactName          = "exact-name"
	EvidenceExactAmbiguous     = "exact-stage-ambiguous"
	EvidenceEmailMatch         = "email-match"
	EvidenceDomainMatch        = "domain-match"
	EvidenceNameMatch          = "name-match"
	EvidenceLexicalOnly        = "lexical-only"
	EvidenceEmbeddingFailed    = "embedding-unavailable"
	EvidenceArbitrated         = "arbitrated"
	EvidenceArbitrationAbstain = "arbitration-abstained"
	EvidenceArbitrationFailed  = "arbitration-failed"
	EvidenceNeedsReview        = "needs-review"
	EvidenceNoUsableField      = "no-usable-field"
	EvidenceNoCandidates       = "no-candidates"
)

// Alternative is a candidate that was considered but not selected
type Alternative struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// MatchResult is the output of one resolution call
type MatchResult struct {
	ID           Optional[string] `json:"id"`
	Name         Optional[string] `json:"name"`
	Confidence   float64          `json:"confidence"`
	Method       Method           `json:"method"`
	Alternatives []Alternative    `json:"alternatives"`
	Evidence     []string         `json:"evidence"`

	// NeedsReview flags results that downstream should route to manual review
	NeedsReview bool `json:"needs_review"`

	// Fallback carries the normalized query when nothing matched
	Fallback *NormalizedQuery `json:"fallback,omitempty"`
}

// Matched reports whether the result names a registry entry
func (r *MatchResult) Matched() bool {
	return r.ID.IsSome()
}

// Validate checks the result invariants
func (r *MatchResult) Validate() error {
	if !r.Method.Valid() {
		return ErrUnknownMethod
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return ErrInvalidScore
	}
	if r.Method != MethodUnmatched && !r.ID.IsSome() {
		return ErrMissingIdentity
	}
	return nil
}

// Unmatched builds the no-match result for a query
func Unmatched(nq *NormalizedQuery, evidence ...string) *MatchResult {
	return &MatchResult{
		Method:       MethodUnmatched,
		Alternatives: []Alternative{},
		Evidence:     append([]string{EvidenceNeedsReview}, evidence...),
		NeedsReview:  true,
		Fallback:     nq,
	}
}
