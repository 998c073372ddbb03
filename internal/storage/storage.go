package storage

import (
	"context"
	"strings"
	"time"

	"github.com/dshills/entityres/pkg/types"
)

// Registry defines the reference registry the resolver reads from and the
// maintenance jobs write to
type Registry interface {
	// Lookup operations
	ExactLookup(ctx context.Context, kind types.Kind, field Field, value string) ([]*types.Entry, error)
	LexicalSearch(ctx context.Context, query LexicalQuery) ([]*types.Entry, error)
	VectorSearch(ctx context.Context, vector []float32, filter *VectorFilter, limit int) ([]VectorResult, error)
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	GetEntries(ctx context.Context, ids []string) ([]*types.Entry, error)
	ListEntries(ctx context.Context, afterID string, limit int) ([]*types.Entry, error)

	// Entry operations
	UpsertEntry(ctx context.Context, entry *types.Entry) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, entryID string) (*Embedding, error)
	DeleteEmbedding(ctx context.Context, entryID string) error
	ListStaleEntries(ctx context.Context, limit int) ([]*types.Entry, error)

	// Verification operations
	RecordVerification(ctx context.Context, event *VerificationEvent) error
	ListVerificationEvents(ctx context.Context, entryID string) ([]*VerificationEvent, error)

	// Status operations
	GetStatus(ctx context.Context) (*RegistryStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Registry
}

// Field names an exactly matched registry attribute
type Field string

const (
	// FieldID matches the registry identifier
	FieldID Field = "id"
	// FieldEmail matches the primary or alternate email
	FieldEmail Field = "email"
	// FieldDomain matches the domain of the primary or alternate email
	FieldDomain Field = "domain"
	// FieldNameKey matches the singularized name key of the name or an alias
	FieldNameKey Field = "name_key"

	externalPrefix = "external:"
)

// FieldExternal matches an external identifier under scheme
func FieldExternal(scheme string) Field {
	return Field(externalPrefix + strings.ToLower(scheme))
}

// externalScheme returns the scheme of an external-identifier field
func (f Field) externalScheme() (string, bool) {
	return strings.CutPrefix(string(f), externalPrefix)
}

// Scope selects which attributes a lexical search inspects
type Scope string

const (
	// ScopeName matches normalized names and aliases by containment in
	// either direction
	ScopeName Scope = "name"
	// ScopeEmail matches emails containing the term
	ScopeEmail Scope = "email"
	// ScopeDomain matches emails on exactly the term's domain
	ScopeDomain Scope = "domain"
)

// LexicalQuery describes one lexical containment search
type LexicalQuery struct {
	Term  string
	Scope Scope
	Kind  types.Kind // empty matches every kind
	Limit int
}

// Embedding is the stored vector of one entry
type Embedding struct {
	EntryID    string
	Vector     []byte // Serialized float32 array
	Dimension  int
	Provider   string
	Model      string
	SourceHash string // hash of the canonical text the vector was built from
	CreatedAt  time.Time
}

// VectorFilter narrows vector search. When both Domain and NameTerm are set
// an entry qualifies by matching either.
type VectorFilter struct {
	Kind          types.Kind
	Domain        string
	NameTerm      string
	MinSimilarity float64
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	EntryID    string
	Similarity float64
}

// VerificationEvent is one append-only audit record written when a
// resolution confirms an entry
type VerificationEvent struct {
	ID         string
	EntryID    string
	Method     types.Method
	Confidence float64
	CreatedAt  time.Time
}

// RegistryStatus contains statistics about the registry
type RegistryStatus struct {
	SchemaVersion      string
	EntriesCount       int
	ActiveCount        int
	EmbeddingsCount    int
	StaleCount         int
	VerifiedCount      int
	VerificationEvents int
	SizeMB             float64
	BuildMode          string
	Health             HealthStatus
}

// HealthStatus represents the health of the registry
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	VectorExtension     bool
}
