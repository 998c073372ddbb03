package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchVector performs vector similarity search using cosine similarity
// over active entries whose embedding matches their current source text
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filter *VectorFilter) ([]VectorResult, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return []VectorResult{}, nil
	}
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, queryVector, limit, filter)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, queryVector, limit, filter)
}

const vectorJoin = `
		FROM entries e
		INNER JOIN embeddings emb ON emb.entry_id = e.id AND emb.source_hash = e.source_hash
		WHERE e.active = 1
`

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, q querier, queryVector []float32, limit int, filter *VectorFilter) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns distance (lower is better); convert to similarity
	query := `
		SELECT e.id, 1.0 - vec_distance_cosine(emb.vector, ?) AS similarity` + vectorJoin + `
		AND emb.dimension = ?`
	args := []any{queryVectorBlob, len(queryVector)}

	query, args = applyVectorFilter(query, args, filter)

	if filter != nil && filter.MinSimilarity > 0 {
		query += " AND (1.0 - vec_distance_cosine(emb.vector, ?)) >= ?"
		args = append(args, queryVectorBlob, filter.MinSimilarity)
	}

	query += " ORDER BY similarity DESC, e.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.EntryID, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback computes cosine similarity in Go. Used when the
// sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, q querier, queryVector []float32, limit int, filter *VectorFilter) ([]VectorResult, error) {
	query := `SELECT e.id, emb.vector` + vectorJoin
	args := []any{}

	query, args = applyVectorFilter(query, args, filter)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var minSimilarity float64
	if filter != nil {
		minSimilarity = filter.MinSimilarity
	}

	candidates := make([]candidate, 0, 256)
	for rows.Next() {
		var entryID string
		var vectorBlob []byte
		if err := rows.Scan(&entryID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)
		if minSimilarity > 0 && similarity < minSimilarity {
			continue
		}
		candidates = append(candidates, candidate{entryID: entryID, score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, limit), nil
}

// applyVectorFilter adds the kind restriction and the domain/name prefilter
func applyVectorFilter(query string, args []any, filter *VectorFilter) (string, []any) {
	if filter == nil {
		return query, args
	}

	if filter.Kind != "" {
		query += " AND e.kind = ?"
		args = append(args, string(filter.Kind))
	}

	switch {
	case filter.Domain != "" && filter.NameTerm != "":
		query += ` AND (e.email_domain = ? OR e.alt_email_domain = ? OR e.name_norm LIKE ? ESCAPE '\')`
		args = append(args, filter.Domain, filter.Domain, likePattern(filter.NameTerm))
	case filter.Domain != "":
		query += " AND (e.email_domain = ? OR e.alt_email_domain = ?)"
		args = append(args, filter.Domain, filter.Domain)
	case filter.NameTerm != "":
		query += ` AND e.name_norm LIKE ? ESCAPE '\'`
		args = append(args, likePattern(filter.NameTerm))
	}
	return query, args
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	// Handle negative or zero limit - return all candidates
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			EntryID:    candidates[i].entryID,
			Similarity: candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents an entry with its similarity score
type candidate struct {
	entryID string
	score   float64
}

// sortCandidates sorts by score descending, ties by entry ID
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entryID < candidates[j].entryID
	})
}

// SerializeVector is an exported helper for embedding writers
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for embedding readers
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper used by the scorer for stored
// entry vectors
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
