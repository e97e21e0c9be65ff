// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the metadata catalog for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nordlys/metawatch/internal/catalog"
	"github.com/nordlys/metawatch/internal/models"
)

// Server wraps the MCP server with metawatch tools.
type Server struct {
	mcp *server.MCPServer
	svc *catalog.Service
}

// New creates an MCP server with all metawatch tools registered.
func New(svc *catalog.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"metawatch",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects in the monitored tree with their identifiers and titles."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_datasets",
		mcp.WithDescription("List the datasets of a project with their lifecycle status (v0_initial, v1_ingested, v2_finalized)."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Root-relative project directory (e.g. p_climate)")),
	), s.listDatasets)

	s.mcp.AddTool(mcp.NewTool("dataset_status",
		mcp.WithDescription("Report the lifecycle stage of one dataset."),
		mcp.WithString("dataset_path", mcp.Required(), mcp.Description("Root-relative dataset directory (e.g. p_climate/d_sensors)")),
	), s.datasetStatus)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read one metadata document of a project or dataset. "+
			"Read the metawatch://layout resource first to understand which kinds exist where."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative project or dataset directory")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Document kind, e.g. project_descriptive or dataset_structural")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("update_document",
		mcp.WithDescription("Update a metadata document. System identifier and creation audit fields "+
			"are preserved regardless of the supplied content; the update is validated against the governing schema."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root-relative project or dataset directory")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Document kind to update")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full document content as a JSON object")),
		mcp.WithString("actor", mcp.Description("Name recorded in last_modified_by (defaults to system)")),
	), s.updateDocument)

	s.mcp.AddTool(mcp.NewTool("create_contextual_template",
		mcp.WithDescription("Create the experiment contextual document for a dataset from a template type. "+
			"Filling its required fields afterwards triggers complete metadata generation."),
		mcp.WithString("dataset_path", mcp.Required(), mcp.Description("Root-relative dataset directory")),
		mcp.WithString("template_type", mcp.Description("Template type (e.g. microscopy_imaging); empty uses the base schema")),
	), s.createContextualTemplate)

	s.mcp.AddTool(mcp.NewTool("check_completion",
		mcp.WithDescription("Run the completion gate for a dataset's contextual document without finalizing it."),
		mcp.WithString("dataset_path", mcp.Required(), mcp.Description("Root-relative dataset directory")),
	), s.checkCompletion)

	s.mcp.AddTool(mcp.NewTool("list_schemas",
		mcp.WithDescription("List every known schema name with its resolution tiers and the currently winning source."),
	), s.listSchemas)

	s.mcp.AddTool(mcp.NewTool("resolve_schema",
		mcp.WithDescription("Return the body of the schema currently governing a logical schema name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Logical schema name, e.g. dataset_structural_schema.json")),
	), s.resolveSchema)

	// Resource: tree layout contract.
	s.mcp.AddResource(
		mcp.NewResource("metawatch://layout", "Monitored Tree Layout",
			mcp.WithResourceDescription("Directory conventions and document kinds of the monitored metadata tree."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(projects)
}

func (s *Server) listDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	datasets, err := s.svc.ListDatasets(ctx, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(datasets)
}

func (s *Server) datasetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("dataset_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.svc.DatasetStatus(path).String()), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := requireKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(ctx, path, kind)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", path, kind)), nil
	}
	return jsonResult(doc)
}

func (s *Server) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := requireKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content is not a JSON object: %v", err)), nil
	}
	actor := req.GetString("actor", "")

	updated, err := s.svc.UpdateDocument(ctx, path, kind, content, actor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(updated)
}

func (s *Server) createContextualTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("dataset_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	templateType := req.GetString("template_type", "")

	runID, err := s.svc.CreateContextualTemplate(ctx, path, templateType)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"experiment_identifier_run_id": runID,
		"dataset_path":                 path,
	})
}

func (s *Server) checkCompletion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("dataset_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	complete, runID, err := s.svc.CheckCompletion(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"complete":                     complete,
		"experiment_identifier_run_id": runID,
	})
}

func (s *Server) listSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListSchemas())
}

func (s *Server) resolveSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, desc, err := s.svc.Schema(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("schema not found: %s", name)), nil
	}
	return jsonResult(map[string]any{
		"descriptor": desc,
		"schema":     body,
	})
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "metawatch://layout",
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}

func requireKind(req mcp.CallToolRequest) (models.Kind, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return "", err
	}
	kind := models.Kind(raw)
	for _, known := range models.Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown document kind: %s", raw)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
