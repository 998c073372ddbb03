// Package types provides the shared domain types of the entity resolution engine.
//
// Entry is one record of the reference registry (a customer company or a
// contact). Query is a noisy, partially populated description of an entity
// extracted upstream, and NormalizedQuery its canonical form. Candidate
// annotates an Entry with the similarity signals computed for one query, and
// MatchResult is what a resolution call returns.
//
// # Optional values
//
// Every optional query field, and the identifier of a MatchResult, is an
// Optional so that "absent" and "empty" are distinct:
//
//	q := types.Query{
//	    Name:  types.Some("Acme Promotional Products"),
//	    Email: types.NonEmpty(extracted.Email),
//	}
//
//	if id, ok := result.ID.Get(); ok {
//	    // matched
//	}
//
// # Methods
//
// Method is a fixed enumeration: exact, override, vector, lexical,
// vector-low-confidence, vector+llm and unmatched.
//
// # Errors
//
// ErrInput, ErrProvider, ErrOracle, ErrStorage and ErrRecorder classify
// failures. Only ErrStorage ever reaches a caller of Resolve.
package types
