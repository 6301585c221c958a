// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault sync engine to agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/models"
)

const (
	defaultHistoryLimit = 50
	defaultSearchLimit  = 10
)

// Service is the engine surface the tools use.
type Service interface {
	ListReadableNotes(ctx context.Context) ([]models.Note, error)
	ReadNote(ctx context.Context, rel string) (*models.Note, error)
	CanWrite(target, agentID string) models.PermissionDecision
	WriteToVault(ctx context.Context, req engine.WriteRequest) (engine.WriteResult, error)
	GetStatus() engine.Status
	GetSyncHistory(limit int) []models.SyncRecord
	Search(ctx context.Context, query string, limit int) ([]index.Hit, error)
}

var _ Service = (*engine.Engine)(nil)

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"OsMEN Vault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_readable_notes",
		mcp.WithDescription("List vault notes the read filters allow, without their content."),
	), s.listReadableNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a readable note with its frontmatter, tags and links."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. Projects/plan.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("can_write",
		mcp.WithDescription("Check whether the vault write policy allows writing a path. Nothing is written."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative target path")),
		mcp.WithString("agent_id", mcp.Description("Identifier of the calling agent")),
	), s.canWrite)

	s.mcp.AddTool(mcp.NewTool("write_to_vault",
		mcp.WithDescription("Write a note into the vault export folder. "+
			"Read the "+ExportFormatURI+" resource for the resulting file layout."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name; .md is appended when missing")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Identifier of the calling agent, stored as created_by")),
		mcp.WithString("subfolder", mcp.Description("Optional folder under the export folder")),
		mcp.WithObject("frontmatter", mcp.Description("Optional extra frontmatter keys; keys are written in sorted order")),
	), s.writeToVault)

	s.mcp.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Report engine status: paths, policy, filters, watch state and the last sync."),
	), s.getStatus)

	s.mcp.AddTool(mcp.NewTool("get_sync_history",
		mcp.WithDescription("Recent sync records, oldest first."),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum records (default %d)", defaultHistoryLimit))),
	), s.getSyncHistory)

	s.mcp.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Full-text search over indexed note chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum hits (default %d)", defaultSearchLimit))),
	), s.searchChunks)

	s.mcp.AddResource(
		mcp.NewResource(ExportFormatURI, "Export Format",
			mcp.WithResourceDescription("Layout of notes written by write_to_vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExportFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listReadableNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.ListReadableNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return jsonResult(notes)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ReadNote(ctx, path)
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidPath):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	case errors.Is(err, apperr.ErrNotReadable):
		return mcp.NewToolResultError(fmt.Sprintf("not readable: %s", path)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) canWrite(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.CanWrite(path, req.GetString("agent_id", "")))
}

func (s *Server) writeToVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fm, err := frontmatterArg(req.GetArguments()["frontmatter"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.WriteToVault(ctx, engine.WriteRequest{
		Filename:    filename,
		Content:     content,
		AgentID:     agentID,
		Subfolder:   req.GetString("subfolder", ""),
		Frontmatter: fm,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

// frontmatterArg converts a decoded JSON object into frontmatter. The
// round trip through encoding/json sorts the keys.
func frontmatterArg(raw any) (models.Frontmatter, error) {
	if raw == nil {
		return nil, nil
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, errors.New("frontmatter must be an object")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}
	var fm models.Frontmatter
	if err := json.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}
	return fm, nil
}

func (s *Server) getStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.GetStatus())
}

func (s *Server) getSyncHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must be non-negative"), nil
	}
	records := s.svc.GetSyncHistory(limit)
	if records == nil {
		records = []models.SyncRecord{}
	}
	return jsonResult(records)
}

func (s *Server) searchChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := s.svc.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, apperr.ErrIndexUnavailable) {
			return mcp.NewToolResultError("chunk index is not enabled"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	return jsonResult(hits)
}

func (s *Server) readExportFormat(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ExportFormatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormat,
		},
	}, nil
}
