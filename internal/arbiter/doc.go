// Package arbiter breaks ties between ambiguous candidates with an external
// reasoning oracle, usually an LLM reached through eino.
//
// The oracle only ever sees the normalized query and at most three
// candidates, and must reply with a strict JSON verdict:
//
//	{"selected_id": "C-100", "rationale": "same domain and city"}
//
// Replies with unknown fields, trailing text or a missing selected_id are
// rejected and retried. "NONE", or any identifier that is not one of the
// supplied candidates, is an abstention. Errors wrap types.ErrOracle and the
// resolver treats them as recoverable.
package arbiter
