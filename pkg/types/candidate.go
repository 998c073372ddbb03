package types

// Source records which retrieval path produced a candidate
type Source uint8

const (
	SourceExact Source = 1 << iota
	SourceLexical
	SourceVector
)

// Has reports whether s includes the flag
func (s Source) Has(flag Source) bool {
	return s&flag != 0
}

// LexicalOnly reports whether the candidate never came through vector retrieval
func (s Source) LexicalOnly() bool {
	return !s.Has(SourceVector)
}

// Candidate is a registry entry annotated against one query. Candidates are
// produced fresh per query and never persisted.
type Candidate struct {
	Entry *Entry

	// Similarity signals
	LexicalSim float64
	CosineSim  float64
	HasCosine  bool

	// Exact signals against the current query
	EmailMatch  bool
	DomainMatch bool
	NameMatch   bool

	Sources Source

	// Score is the composite score assigned by the scorer
	Score float64
}
