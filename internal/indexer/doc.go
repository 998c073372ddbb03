// Package indexer maintains the reference registry.
//
// Two jobs are provided:
//
//   - Import reads entries as JSON lines and upserts them in batched
//     transactions. Lines that fail to decode or validate are skipped and
//     reported in Statistics.ErrorMessages.
//   - Reembed embeds every active entry whose stored vector is missing or
//     stale, batching texts per provider call and running batches on a
//     bounded worker pool.
//
// An embedding is stale when the canonical entry text it was built from
// (normalize.EntryText) no longer hashes to the entry's source hash. Import
// therefore never touches vectors directly: changing a name or email makes
// the old vector invisible to vector search until Reembed replaces it.
//
//	idx := indexer.New(store, emb, cache, logger)
//	stats, err := idx.Import(ctx, file, nil)
//	stats, err = idx.Reembed(ctx, &indexer.Config{Workers: 4, BatchSize: 50})
//
// Both jobs invalidate the registry cache when they finish. Only one job
// runs at a time; a second caller gets ErrBusy.
//
// A line of the import stream:
//
//	{"id":"C-1","kind":"customer","name":"Acme Promotional Products","email":"orders@acme.com","aliases":["Acme Promo"]}
package indexer
