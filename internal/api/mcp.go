package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/vinq/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat    ChatService
	Records RecordStore // optional; get_record is not registered when nil
	Version string
}

// NewMCPServer creates an MCP server exposing the inspection query pipeline.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"vinq",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("vinq answers natural-language questions about vehicle inspection records."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_inspections",
			mcp.WithDescription("Ask a natural-language question about vehicle inspection records. Pass session_id to keep conversational context."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation id; a new one is generated when omitted")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_session",
			mcp.WithDescription("Forget the conversation history of a session."),
			mcp.WithString("session_id", mcp.Description("Conversation id"), mcp.Required()),
		),
		mcpClearSession(deps),
	)

	if deps.Records != nil {
		s.AddTool(
			mcp.NewTool("get_record",
				mcp.WithDescription("Fetch a single inspection record by record_id."),
				mcp.WithString("record_id", mcp.Description("The record identifier"), mcp.Required()),
			),
			mcpGetRecord(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"inspections://schema",
			"Inspections Schema",
			mcp.WithResourceDescription("Columns of the inspections table with descriptions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchema,
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}
		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		ans := deps.Chat.Process(ctx, query, sessionID)

		b, err := json.Marshal(ans)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil || id == "" {
			return mcpError("session_id is required"), nil
		}
		if err := deps.Chat.ClearSession(ctx, id); err != nil {
			return mcpError(fmt.Sprintf("failed to clear session: %v", err)), nil
		}
		return mcpText("session cleared"), nil
	}
}

func mcpGetRecord(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("record_id")
		if err != nil || id == "" {
			return mcpError("record_id is required"), nil
		}
		rec, err := deps.Records.GetRecord(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("record %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get record: %v", err)), nil
		}
		b, err := json.Marshal(toRecordJSON(rec))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSchema(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     storage.SchemaJSON(),
		},
	}, nil
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
