// Package mcp implements the Model Context Protocol (MCP) server for the
// entity resolver.
//
// The server exposes three tools to MCP clients such as document extraction
// agents:
//   - resolve_entity: Resolve one extracted reference to a registry entry
//   - reembed_registry: Refresh missing or stale entry embeddings
//   - registry_status: Report registry and embedding statistics
//
// MCP is JSON-RPC 2.0 over stdio. The server is started with:
//
//	entityres serve
//
// # Tool: resolve_entity
//
//	Request:
//	{
//	  "name": "resolve_entity",
//	  "arguments": {
//	    "name": "ACME Promo",
//	    "email": "orders@acme.com"
//	  }
//	}
//
//	Response:
//	{
//	  "id": "C-2",
//	  "name": "Acme Promotional Products",
//	  "confidence": 1,
//	  "method": "exact",
//	  "alternatives": [],
//	  "evidence": ["exact-email"],
//	  "needs_review": false
//	}
//
// A query with no usable field is not an error: it resolves to method
// "unmatched" with the normalized query attached as "fallback".
//
// # Tool: reembed_registry
//
//	Request:  {"name": "reembed_registry", "arguments": {"batch_size": 50}}
//	Response: {"embeddings_created": 120, "embeddings_failed": 0, "duration_ms": 5400}
//
// # Error Codes
//
//	-32602  Invalid params (unknown field, bad kind, out of range values)
//	-32603  Internal error
//	-32001  Registry unavailable
//	-32002  Import or re-embed already running
//	-32003  No embedding provider configured
package mcp
