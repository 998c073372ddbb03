// Package normalize canonicalizes resolution queries and registry entries.
//
// Names are lowercased, unicode folded and whitespace collapsed, with "&"
// expanded to "and". Three forms are derived from a name:
//
//   - Name: the normalized display form used for lexical similarity
//   - Key: Name with tokens singularized, used for exact and override routing
//   - Root: Name without legal suffixes or generic industry words
//
// Emails on the operator's own domains are never treated as the external
// entity's address. They are replaced by the upstream original sender when
// one is known.
//
// QueryText and EntryText produce the canonical projection that is embedded
// for vector retrieval, and SourceHash fingerprints it so stale embeddings
// can be detected.
package normalize
