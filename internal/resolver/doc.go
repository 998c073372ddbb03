// Package resolver composes the resolution pipeline.
//
// A Resolve call runs, in order:
//
//  1. normalization of the raw query
//  2. the override table, which short-circuits everything else
//  3. exact lookups, concurrently with the query embedding
//  4. candidate retrieval (lexical and vector) when no stage hit
//  5. scoring and the decision policy
//  6. arbitration for close calls among strong candidates
//  7. the verification write for confident matches
//
// Embedding and arbitration failures degrade the result instead of failing
// it. Only a registry read failure surfaces as an error:
//
//	r, err := resolver.New(resolver.Deps{Registry: store, Embedder: emb}, resolver.Options{})
//	res, err := r.Resolve(ctx, types.Query{Name: types.Some("Acme Promo")})
//	if errors.Is(err, types.ErrStorage) {
//	    // retry later
//	}
package resolver
