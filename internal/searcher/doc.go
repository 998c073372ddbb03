// Package searcher is the candidate retriever of the resolution pipeline.
//
// When the deterministic stage finds nothing, Retrieve produces up to
// Options.Limit (default 25) candidates from two strategies run
// concurrently:
//
//   - Lexical: containment search of normalized names, aliases and emails
//     against the query's name, root form and expansions, plus a
//     domain-scoped search when the query carries a non free-mail domain.
//   - Vector: cosine similarity between the query embedding and stored
//     entry embeddings, optionally prefiltered by domain or root name.
//
// Results are deduplicated by entry ID and annotated with Annotate:
//
//	vec, err := s.EmbedQuery(ctx, &nq)
//	if err != nil {
//	    vec = nil // lexical only
//	}
//	resp, err := s.Retrieve(ctx, searcher.Request{Query: &nq, Vector: vec})
//
// Registry failures wrap types.ErrStorage. Embedding failures wrap
// types.ErrProvider and never prevent lexical retrieval.
package searcher
