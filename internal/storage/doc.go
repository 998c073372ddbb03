// Package storage provides the SQLite-backed reference registry.
//
// The registry holds every resolvable entity together with the derived data
// the resolver matches against:
//   - entries: display and normalized names, contact fields, verification
//   - entry_aliases: alternate names with their normalized and key forms
//   - entry_external_ids: identifiers issued by external schemes
//   - embeddings: one vector per entry, tagged with the hash of its source text
//   - verification_events: append-only audit trail of confirmations
//
// # Embedding freshness
//
// An embedding is current only while its source_hash equals the entry's
// source_hash. UpsertEntry deletes the embedding whenever the canonical text
// changes, and every read joins on the hash, so a stale vector is never
// returned. ListStaleEntries feeds the maintenance job that regenerates them.
//
// # Basic Usage
//
//	reg, err := storage.NewSQLiteStorage("registry.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
//	hits, err := reg.ExactLookup(ctx, types.KindCustomer, storage.FieldEmail, "orders@acme.com")
//
// # Transactions
//
//	tx, err := reg.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertEntry(ctx, entry); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Vector Search
//
// Built with the sqlite_vec tag the cosine distance is computed by the
// sqlite-vec extension; otherwise similarity is computed in Go over the
// stored float32 blobs.
//
// # Build Modes
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec" ./...   # mattn/go-sqlite3
//	CGO_ENABLED=0 go build -tags "purego" ./...       # modernc.org/sqlite
package storage
