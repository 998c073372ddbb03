package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions are not supported")
)

// SQLiteStorage implements the Registry interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens the registry at dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// inTx runs fn in a fresh transaction, committing on success
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Entry operations

const entrySelect = `
	SELECT e.id, e.kind, e.name, e.email, e.alt_email, e.phone, e.job_title,
	       e.line1, e.city, e.state, e.postal_code, e.country, e.active,
	       e.verified, e.last_verified_at, e.last_verified_method, e.verification_confidence,
	       e.created_at, e.updated_at, emb.vector, emb.source_hash
	FROM entries e
	LEFT JOIN embeddings emb ON emb.entry_id = e.id AND emb.source_hash = e.source_hash
`

func upsertEntryWithQuerier(ctx context.Context, q querier, entry *types.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	email := normalize.Email(entry.Email)
	altEmail := normalize.Email(entry.AltEmail)
	nameNorm := normalize.Name(entry.Name)
	sourceHash := normalize.SourceHash(normalize.EntryText(entry))
	now := time.Now()

	query := `
		INSERT INTO entries (id, kind, name, name_norm, name_key, email, email_domain,
			alt_email, alt_email_domain, phone, job_title, line1, city, state, postal_code,
			country, active, verified, last_verified_at, last_verified_method,
			verification_confidence, source_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			name_norm = excluded.name_norm,
			name_key = excluded.name_key,
			email = excluded.email,
			email_domain = excluded.email_domain,
			alt_email = excluded.alt_email,
			alt_email_domain = excluded.alt_email_domain,
			phone = excluded.phone,
			job_title = excluded.job_title,
			line1 = excluded.line1,
			city = excluded.city,
			state = excluded.state,
			postal_code = excluded.postal_code,
			country = excluded.country,
			active = excluded.active,
			source_hash = excluded.source_hash,
			updated_at = excluded.updated_at
	`
	var lastVerified any
	if !entry.Verification.LastVerifiedAt.IsZero() {
		lastVerified = entry.Verification.LastVerifiedAt
	}
	_, err := q.ExecContext(ctx, query,
		entry.ID, string(entry.Kind), entry.Name, nameNorm, normalize.Key(nameNorm),
		email, normalize.Domain(email), altEmail, normalize.Domain(altEmail),
		normalize.Phone(entry.Phone), entry.JobTitle,
		entry.Address.Line1, entry.Address.City, entry.Address.State,
		entry.Address.PostalCode, entry.Address.Country, entry.Active,
		entry.Verification.Verified, lastVerified, string(entry.Verification.LastVerifiedMethod),
		entry.Verification.Confidence, sourceHash, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	if err := q.QueryRowContext(ctx, "SELECT created_at FROM entries WHERE id = ?", entry.ID).Scan(&entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to read entry: %w", err)
	}
	entry.UpdatedAt = now

	if _, err := q.ExecContext(ctx, "DELETE FROM entry_aliases WHERE entry_id = ?", entry.ID); err != nil {
		return fmt.Errorf("failed to clear aliases: %w", err)
	}
	for _, alias := range entry.Aliases {
		aliasNorm := normalize.Name(alias)
		if aliasNorm == "" {
			continue
		}
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO entry_aliases (entry_id, alias, alias_norm, alias_key) VALUES (?, ?, ?, ?)",
			entry.ID, alias, aliasNorm, normalize.Key(aliasNorm))
		if err != nil {
			return fmt.Errorf("failed to insert alias: %w", err)
		}
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM entry_external_ids WHERE entry_id = ?", entry.ID); err != nil {
		return fmt.Errorf("failed to clear external ids: %w", err)
	}
	for scheme, value := range entry.ExternalIDs {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		value = strings.TrimSpace(value)
		if scheme == "" || value == "" {
			continue
		}
		_, err := q.ExecContext(ctx,
			"INSERT INTO entry_external_ids (entry_id, scheme, value) VALUES (?, ?, ?)",
			entry.ID, scheme, value)
		if err != nil {
			return fmt.Errorf("failed to insert external id: %w", err)
		}
	}

	// A changed source text invalidates the stored vector
	res, err := q.ExecContext(ctx, "DELETE FROM embeddings WHERE entry_id = ? AND source_hash <> ?", entry.ID, sourceHash)
	if err != nil {
		return fmt.Errorf("failed to invalidate embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		entry.Embedding = nil
		entry.EmbeddingHash = ""
	}
	return nil
}

func (s *SQLiteStorage) UpsertEntry(ctx context.Context, entry *types.Entry) error {
	return s.inTx(ctx, func(q querier) error {
		return upsertEntryWithQuerier(ctx, q, entry)
	})
}

// loadEntries runs entrySelect with the given clause and attaches aliases
// and external identifiers. Rows come back in query order.
func loadEntries(ctx context.Context, q querier, clause string, args ...any) ([]*types.Entry, error) {
	rows, err := q.QueryContext(ctx, entrySelect+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	var entries []*types.Entry
	byID := make(map[string]*types.Entry)
	for rows.Next() {
		var (
			e            types.Entry
			kind, method string
			lastVerified sql.NullTime
			vector       []byte
			embHash      sql.NullString
		)
		err := rows.Scan(
			&e.ID, &kind, &e.Name, &e.Email, &e.AltEmail, &e.Phone, &e.JobTitle,
			&e.Address.Line1, &e.Address.City, &e.Address.State, &e.Address.PostalCode,
			&e.Address.Country, &e.Active,
			&e.Verification.Verified, &lastVerified, &method, &e.Verification.Confidence,
			&e.CreatedAt, &e.UpdatedAt, &vector, &embHash,
		)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Kind = types.Kind(kind)
		e.Verification.LastVerifiedMethod = types.Method(method)
		if lastVerified.Valid {
			e.Verification.LastVerifiedAt = lastVerified.Time
		}
		if len(vector) > 0 && embHash.Valid {
			e.Embedding = deserializeVector(vector)
			e.EmbeddingHash = embHash.String
		}
		entries = append(entries, &e)
		byID[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(entries) == 0 {
		return entries, nil
	}
	if err := attachAliases(ctx, q, byID); err != nil {
		return nil, err
	}
	if err := attachExternalIDs(ctx, q, byID); err != nil {
		return nil, err
	}
	return entries, nil
}

func attachAliases(ctx context.Context, q querier, byID map[string]*types.Entry) error {
	in, args := inClause(keysOf(byID))
	rows, err := q.QueryContext(ctx,
		"SELECT entry_id, alias FROM entry_aliases WHERE entry_id IN "+in+" ORDER BY entry_id, alias_norm", args...)
	if err != nil {
		return fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return err
		}
		if e := byID[id]; e != nil {
			e.Aliases = append(e.Aliases, alias)
		}
	}
	return rows.Err()
}

func attachExternalIDs(ctx context.Context, q querier, byID map[string]*types.Entry) error {
	in, args := inClause(keysOf(byID))
	rows, err := q.QueryContext(ctx,
		"SELECT entry_id, scheme, value FROM entry_external_ids WHERE entry_id IN "+in, args...)
	if err != nil {
		return fmt.Errorf("failed to query external ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, scheme, value string
		if err := rows.Scan(&id, &scheme, &value); err != nil {
			return err
		}
		if e := byID[id]; e != nil {
			if e.ExternalIDs == nil {
				e.ExternalIDs = make(map[string]string)
			}
			e.ExternalIDs[scheme] = value
		}
	}
	return rows.Err()
}

func getEntryWithQuerier(ctx context.Context, q querier, id string) (*types.Entry, error) {
	entries, err := loadEntries(ctx, q, "WHERE e.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	return getEntryWithQuerier(ctx, s.db, id)
}

// getEntriesWithQuerier returns the entries for ids in the order given,
// skipping unknown ids
func getEntriesWithQuerier(ctx context.Context, q querier, ids []string) ([]*types.Entry, error) {
	if len(ids) == 0 {
		return []*types.Entry{}, nil
	}
	in, args := inClause(ids)
	entries, err := loadEntries(ctx, q, "WHERE e.id IN "+in, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	ordered := make([]*types.Entry, 0, len(entries))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (s *SQLiteStorage) GetEntries(ctx context.Context, ids []string) ([]*types.Entry, error) {
	return getEntriesWithQuerier(ctx, s.db, ids)
}

func listEntriesWithQuerier(ctx context.Context, q querier, afterID string, limit int) ([]*types.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return loadEntries(ctx, q, "WHERE e.id > ? ORDER BY e.id LIMIT ?", afterID, limit)
}

func (s *SQLiteStorage) ListEntries(ctx context.Context, afterID string, limit int) ([]*types.Entry, error) {
	return listEntriesWithQuerier(ctx, s.db, afterID, limit)
}

// Lookup operations

func exactLookupWithQuerier(ctx context.Context, q querier, kind types.Kind, field Field, value string) ([]*types.Entry, error) {
	if value == "" {
		return []*types.Entry{}, nil
	}

	var clause string
	var args []any
	switch field {
	case FieldID:
		clause, args = "WHERE e.id = ?", []any{value}
	case FieldEmail:
		clause, args = "WHERE (e.email = ? OR e.alt_email = ?)", []any{value, value}
	case FieldDomain:
		clause, args = "WHERE (e.email_domain = ? OR e.alt_email_domain = ?)", []any{value, value}
	case FieldNameKey:
		clause = `WHERE (e.name_key = ? OR EXISTS (
			SELECT 1 FROM entry_aliases a WHERE a.entry_id = e.id AND a.alias_key = ?))`
		args = []any{value, value}
	default:
		scheme, ok := field.externalScheme()
		if !ok || scheme == "" {
			return nil, fmt.Errorf("unknown lookup field %q", field)
		}
		clause = `WHERE EXISTS (
			SELECT 1 FROM entry_external_ids x WHERE x.entry_id = e.id AND x.scheme = ? AND x.value = ?)`
		args = []any{scheme, value}
	}

	clause += " AND e.active = 1"
	if kind != "" {
		clause += " AND e.kind = ?"
		args = append(args, string(kind))
	}
	clause += " ORDER BY e.id"

	return loadEntries(ctx, q, clause, args...)
}

func (s *SQLiteStorage) ExactLookup(ctx context.Context, kind types.Kind, field Field, value string) ([]*types.Entry, error) {
	return exactLookupWithQuerier(ctx, s.db, kind, field, value)
}

// minReverseContainment keeps very short stored names from matching every
// longer query term
const minReverseContainment = 3

func lexicalSearchWithQuerier(ctx context.Context, q querier, lq LexicalQuery) ([]*types.Entry, error) {
	term := strings.TrimSpace(lq.Term)
	if term == "" {
		return []*types.Entry{}, nil
	}
	limit := lq.Limit
	if limit <= 0 {
		limit = 25
	}
	pattern := likePattern(term)

	var clause string
	var args []any
	switch lq.Scope {
	case ScopeName:
		clause = `WHERE (e.name_norm LIKE ? ESCAPE '\'
			OR (length(e.name_norm) >= ? AND instr(?, e.name_norm) > 0)
			OR EXISTS (SELECT 1 FROM entry_aliases a WHERE a.entry_id = e.id AND (
				a.alias_norm LIKE ? ESCAPE '\'
				OR (length(a.alias_norm) >= ? AND instr(?, a.alias_norm) > 0))))`
		args = []any{pattern, minReverseContainment, term, pattern, minReverseContainment, term}
	case ScopeEmail:
		clause = `WHERE (e.email LIKE ? ESCAPE '\' OR e.alt_email LIKE ? ESCAPE '\')`
		args = []any{pattern, pattern}
	case ScopeDomain:
		clause = "WHERE (e.email_domain = ? OR e.alt_email_domain = ?)"
		args = []any{term, term}
	default:
		return nil, fmt.Errorf("unknown lexical scope %q", lq.Scope)
	}

	clause += " AND e.active = 1"
	if lq.Kind != "" {
		clause += " AND e.kind = ?"
		args = append(args, string(lq.Kind))
	}
	clause += " ORDER BY e.name_norm, e.id LIMIT ?"
	args = append(args, limit)

	return loadEntries(ctx, q, clause, args...)
}

func (s *SQLiteStorage) LexicalSearch(ctx context.Context, query LexicalQuery) ([]*types.Entry, error) {
	return lexicalSearchWithQuerier(ctx, s.db, query)
}

func (s *SQLiteStorage) VectorSearch(ctx context.Context, vector []float32, filter *VectorFilter, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, limit, filter)
}

// Embedding operations

func upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (entry_id, vector, dimension, provider, model, source_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			source_hash = excluded.source_hash,
			created_at = excluded.created_at
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		embedding.EntryID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, embedding.SourceHash, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func getEmbeddingWithQuerier(ctx context.Context, q querier, entryID string) (*Embedding, error) {
	query := `
		SELECT entry_id, vector, dimension, provider, model, source_hash, created_at
		FROM embeddings
		WHERE entry_id = ?
	`
	var emb Embedding
	err := q.QueryRowContext(ctx, query, entryID).Scan(
		&emb.EntryID, &emb.Vector, &emb.Dimension, &emb.Provider,
		&emb.Model, &emb.SourceHash, &emb.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, entryID string) (*Embedding, error) {
	return getEmbeddingWithQuerier(ctx, s.db, entryID)
}

func deleteEmbeddingWithQuerier(ctx context.Context, q querier, entryID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM embeddings WHERE entry_id = ?", entryID)
	return err
}

func (s *SQLiteStorage) DeleteEmbedding(ctx context.Context, entryID string) error {
	return deleteEmbeddingWithQuerier(ctx, s.db, entryID)
}

// listStaleEntriesWithQuerier returns active entries with no embedding for
// their current source text
func listStaleEntriesWithQuerier(ctx context.Context, q querier, limit int) ([]*types.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return loadEntries(ctx, q, `
		WHERE e.active = 1 AND emb.entry_id IS NULL
		ORDER BY e.id LIMIT ?`, limit)
}

func (s *SQLiteStorage) ListStaleEntries(ctx context.Context, limit int) ([]*types.Entry, error) {
	return listStaleEntriesWithQuerier(ctx, s.db, limit)
}

// Verification operations

func recordVerificationWithQuerier(ctx context.Context, q querier, event *VerificationEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	res, err := q.ExecContext(ctx, `
		UPDATE entries
		SET verified = 1, last_verified_at = ?, last_verified_method = ?, verification_confidence = ?
		WHERE id = ?`,
		event.CreatedAt, string(event.Method), event.Confidence, event.EntryID)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO verification_events (id, entry_id, method, confidence, created_at) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.EntryID, string(event.Method), event.Confidence, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append verification event: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordVerification(ctx context.Context, event *VerificationEvent) error {
	return s.inTx(ctx, func(q querier) error {
		return recordVerificationWithQuerier(ctx, q, event)
	})
}

func listVerificationEventsWithQuerier(ctx context.Context, q querier, entryID string) ([]*VerificationEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, method, confidence, created_at
		FROM verification_events
		WHERE entry_id = ?
		ORDER BY created_at, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := make([]*VerificationEvent, 0)
	for rows.Next() {
		var ev VerificationEvent
		var method string
		if err := rows.Scan(&ev.ID, &ev.EntryID, &method, &ev.Confidence, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Method = types.Method(method)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) ListVerificationEvents(ctx context.Context, entryID string) ([]*VerificationEvent, error) {
	return listVerificationEventsWithQuerier(ctx, s.db, entryID)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*RegistryStatus, error) {
	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status := &RegistryStatus{
		SchemaVersion: version,
		BuildMode:     BuildMode,
	}

	counts := []struct {
		dest  *int
		query string
	}{
		{&status.EntriesCount, "SELECT COUNT(*) FROM entries"},
		{&status.ActiveCount, "SELECT COUNT(*) FROM entries WHERE active = 1"},
		{&status.EmbeddingsCount, `
			SELECT COUNT(*) FROM embeddings emb
			JOIN entries e ON e.id = emb.entry_id AND e.source_hash = emb.source_hash`},
		{&status.StaleCount, `
			SELECT COUNT(*) FROM entries e
			LEFT JOIN embeddings emb ON emb.entry_id = e.id AND emb.source_hash = e.source_hash
			WHERE e.active = 1 AND emb.entry_id IS NULL`},
		{&status.VerifiedCount, "SELECT COUNT(*) FROM entries WHERE verified = 1"},
		{&status.VerificationEvents, "SELECT COUNT(*) FROM verification_events"},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		VectorExtension:     VectorExtensionAvailable,
	}
	return status, nil
}

// Helpers

// inClause returns "(?,?,...)" and its arguments
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", len(values)), ",") + ")", args
}

func keysOf(m map[string]*types.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// likePattern wraps term for a LIKE containment match, escaping wildcards
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// Transaction implementations

func (t *sqliteTx) ExactLookup(ctx context.Context, kind types.Kind, field Field, value string) ([]*types.Entry, error) {
	return exactLookupWithQuerier(ctx, t.tx, kind, field, value)
}

func (t *sqliteTx) LexicalSearch(ctx context.Context, query LexicalQuery) ([]*types.Entry, error) {
	return lexicalSearchWithQuerier(ctx, t.tx, query)
}

func (t *sqliteTx) VectorSearch(ctx context.Context, vector []float32, filter *VectorFilter, limit int) ([]VectorResult, error) {
	return searchVector(ctx, t.tx, vector, limit, filter)
}

func (t *sqliteTx) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	return getEntryWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) GetEntries(ctx context.Context, ids []string) ([]*types.Entry, error) {
	return getEntriesWithQuerier(ctx, t.tx, ids)
}

func (t *sqliteTx) ListEntries(ctx context.Context, afterID string, limit int) ([]*types.Entry, error) {
	return listEntriesWithQuerier(ctx, t.tx, afterID, limit)
}

func (t *sqliteTx) UpsertEntry(ctx context.Context, entry *types.Entry) error {
	return upsertEntryWithQuerier(ctx, t.tx, entry)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, entryID string) (*Embedding, error) {
	return getEmbeddingWithQuerier(ctx, t.tx, entryID)
}

func (t *sqliteTx) DeleteEmbedding(ctx context.Context, entryID string) error {
	return deleteEmbeddingWithQuerier(ctx, t.tx, entryID)
}

func (t *sqliteTx) ListStaleEntries(ctx context.Context, limit int) ([]*types.Entry, error) {
	return listStaleEntriesWithQuerier(ctx, t.tx, limit)
}

func (t *sqliteTx) RecordVerification(ctx context.Context, event *VerificationEvent) error {
	return recordVerificationWithQuerier(ctx, t.tx, event)
}

func (t *sqliteTx) ListVerificationEvents(ctx context.Context, entryID string) ([]*VerificationEvent, error) {
	return listVerificationEventsWithQuerier(ctx, t.tx, entryID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*RegistryStatus, error) {
	return nil, fmt.Errorf("status is not available inside a transaction")
}

func (t *sqliteTx) Close() error {
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
