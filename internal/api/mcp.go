package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/paperdesk/advisor/internal/retrieval"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Advisor   AdviceProvider
	Retriever SearchRetriever
}

// NewMCPServer exposes the advisor over MCP so local agent hosts can ask
// for advice and search the reference document directly.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"advisor",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("advisor — local investment advisory grounded in a reference document."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_advice",
			mcp.WithDescription("Ask an investment question and get an answer grounded in the reference document."),
			mcp.WithString("query", mcp.Description("The investment question"), mcp.Required()),
			mcp.WithString("facts", mcp.Description("Optional JSON object of portfolio facts, e.g. {\"cash\":\"10000\"}")),
		),
		mcpGetAdvice(deps),
	)

	s.AddTool(
		mcp.NewTool("search_reference",
			mcp.WithDescription("Semantically search the reference document and return the most similar chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchReference(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"advisor://status",
			"Advisor Status",
			mcp.WithResourceDescription("Retrieval readiness and index size as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func mcpGetAdvice(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		var facts map[string]string
		if raw := req.GetString("facts", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &facts); err != nil {
				return mcpError(fmt.Sprintf("invalid facts JSON: %v", err)), nil
			}
		}

		advice := deps.Advisor.GetAdvice(ctx, query, facts)
		return mcpText(advice.Text), nil
	}
}

func mcpSearchReference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		k := retrieval.ClampTopK(req.GetInt("k", retrieval.DefaultTopK))

		scored := deps.Retriever.Retrieve(ctx, query, k)
		if len(scored) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]searchResult, len(scored))
		for i, s := range scored {
			results[i] = searchResult{
				ID:    s.Chunk.ID,
				Page:  s.Chunk.Page,
				Text:  s.Chunk.Text,
				Score: s.Score,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"ready":  deps.Advisor.Ready(),
			"chunks": deps.Advisor.IndexSize(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
