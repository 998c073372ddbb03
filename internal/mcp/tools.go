package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/indexer"
	"github.com/dshills/entityres/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams         = -32602 // Invalid method parameters
	ErrorCodeInternalError         = -32603 // Internal JSON-RPC error
	ErrorCodeRegistryUnavailable   = -32001 // Registry could not be read
	ErrorCodeMaintenanceInProgress = -32002 // Another import or re-embed is running
	ErrorCodeNoEmbedder            = -32003 // No embedding provider configured
)

// handleResolveEntity handles the resolve_entity tool invocation
func (s *Server) handleResolveEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := decodeQuery(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	result, err := s.resolver.Resolve(ctx, query)
	if errors.Is(err, types.ErrStorage) {
		return nil, newMCPError(ErrorCodeRegistryUnavailable, "registry unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "resolution failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode result", nil)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// handleReembedRegistry handles the reembed_registry tool invocation
func (s *Server) handleReembedRegistry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	// omitted workers selects the indexer default
	workers := getIntDefault(args, "workers", 0)
	if _, given := args["workers"]; given && (workers < 1 || workers > 32) {
		return nil, newMCPError(ErrorCodeInvalidParams, "workers must be between 1 and 32", map[string]interface{}{
			"param": "workers",
			"value": workers,
		})
	}
	batchSize := getIntDefault(args, "batch_size", 50)
	if batchSize < 1 || batchSize > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "batch_size must be between 1 and 100", map[string]interface{}{
			"param": "batch_size",
			"value": batchSize,
		})
	}

	stats, err := s.indexer.Reembed(ctx, &indexer.Config{Workers: workers, BatchSize: batchSize})
	switch {
	case errors.Is(err, indexer.ErrBusy):
		return nil, newMCPError(ErrorCodeMaintenanceInProgress, "registry maintenance already running", nil)
	case errors.Is(err, indexer.ErrNoEmbedder):
		return nil, newMCPError(ErrorCodeNoEmbedder, "no embedding provider configured", nil)
	case err != nil:
		s.logger.Warn("re-embed failed", zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "re-embed failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"embeddings_created": stats.EmbeddingsCreated,
		"embeddings_failed":  stats.EmbeddingsFailed,
		"duration_ms":        stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		response["errors"] = stats.ErrorMessages[:min(errorCount, 5)]
		response["error_count"] = errorCount
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRegistryStatus handles the registry_status tool invocation
func (s *Server) handleRegistryStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.registry.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeRegistryUnavailable, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
		"maintenance":    s.indexer.Running(),
		"statistics": map[string]interface{}{
			"entries_count":       status.EntriesCount,
			"active_count":        status.ActiveCount,
			"embeddings_count":    status.EmbeddingsCount,
			"stale_count":         status.StaleCount,
			"verified_count":      status.VerifiedCount,
			"verification_events": status.VerificationEvents,
			"registry_size_mb":    fmt.Sprintf("%.2f", status.SizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"vector_extension":     status.Health.VectorExtension,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// decodeQuery maps tool arguments onto a Query, rejecting unknown fields
func decodeQuery(args map[string]interface{}) (types.Query, error) {
	var q types.Query
	raw, err := json.Marshal(args)
	if err != nil {
		return q, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return q, err
	}
	switch q.Kind {
	case "", types.KindCustomer, types.KindContact:
	default:
		return q, fmt.Errorf("unknown kind %q", q.Kind)
	}
	return q, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(out)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
