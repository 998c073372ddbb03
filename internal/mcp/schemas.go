package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// resolveEntityTool returns the tool definition for resolve_entity
func resolveEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "resolve_entity",
		Description: "Resolve an extracted business or person reference to a registry entry. Every field is optional; supply what the source document carries.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict matching to one entity family",
					"enum":        []string{"customer", "contact"},
				},
				"id":                    stringProperty("Registry identifier, when the source quotes one"),
				"name":                  stringProperty("Organization or person name as written"),
				"job_title":             stringProperty("Job title of a contact"),
				"email":                 stringProperty("Email address of the entity"),
				"sender_email":          stringProperty("Email address the document was sent from"),
				"original_sender_email": stringProperty("Sender before internal forwarding, if known"),
				"phone":                 stringProperty("Phone number in any format"),
				"city":                  stringProperty("City"),
				"state":                 stringProperty("State or province"),
				"external_ids": map[string]interface{}{
					"type":                 "object",
					"description":          "External identifiers keyed by scheme, e.g. {\"asi\": \"123456\"}",
					"additionalProperties": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
}

// reembedRegistryTool returns the tool definition for reembed_registry
func reembedRegistryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reembed_registry",
		Description: "Generate embeddings for registry entries whose vectors are missing or out of date",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrent embedding calls (1-32)",
					"minimum":     1,
					"maximum":     32,
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Texts per embedding call (1-100)",
					"default":     50,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// registryStatusTool returns the tool definition for registry_status
func registryStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "registry_status",
		Description: "Report registry size, embedding coverage and verification counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
