package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listProjectsTool(),
		s.getFullProjectTool(),
		s.getFullGraphTool(),
	)
}

func tenantArg() mcplib.ToolOption {
	return mcplib.WithString("tenant_id",
		mcplib.Required(),
		mcplib.Description("Tenant that owns the project"),
	)
}

func (s *Server) listProjectsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_projects",
		mcplib.WithDescription("List the projects of a tenant, including projects only implied by stored resources"),
		tenantArg(),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of projects to return; 0 returns all")),
		mcplib.WithNumber("offset", mcplib.Description("Number of projects to skip")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListProjects}
}

func (s *Server) getFullProjectTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_full_project",
		mcplib.WithDescription("Get the nested definition of a project with all graphs, agents, tools and components"),
		tenantArg(),
		mcplib.WithString("project_id", mcplib.Required(), mcplib.Description("The project ID to materialize")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetFullProject}
}

func (s *Server) getFullGraphTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_full_graph",
		mcplib.WithDescription("Get the nested definition of one agent graph"),
		tenantArg(),
		mcplib.WithString("project_id", mcplib.Required(), mcplib.Description("The project that owns the graph")),
		mcplib.WithString("graph_id", mcplib.Required(), mcplib.Description("The graph ID to materialize")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetFullGraph}
}

// stringArgs reads required string arguments in order. The second return
// value is an error result naming the first missing argument.
func stringArgs(req mcplib.CallToolRequest, names ...string) ([]string, *mcplib.CallToolResult) { //nolint:gocritic // hugeParam: mcp-go request type
	args := req.GetArguments()
	out := make([]string, len(names))
	for i, name := range names {
		v, ok := args[name].(string)
		if !ok || v == "" {
			return nil, mcplib.NewToolResultError(name + " is required")
		}
		out[i] = v
	}
	return out, nil
}

func (s *Server) handleListProjects(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Projects == nil {
		return mcplib.NewToolResultError("project reader not configured"), nil
	}
	vals, errResult := stringArgs(req, "tenant_id")
	if errResult != nil {
		return errResult, nil
	}
	opts := database.ListOptions{
		Limit:  req.GetInt("limit", 0),
		Offset: req.GetInt("offset", 0),
	}
	page, err := s.deps.Projects.ListProjects(ctx, vals[0], opts)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list projects", err), nil
	}
	return jsonResult(page)
}

func (s *Server) handleGetFullProject(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Projects == nil {
		return mcplib.NewToolResultError("project reader not configured"), nil
	}
	vals, errResult := stringArgs(req, "tenant_id", "project_id")
	if errResult != nil {
		return errResult, nil
	}
	def, err := s.deps.Projects.GetFullProject(ctx, scope.Project(vals[0], vals[1]))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get project %s", vals[1]), err), nil
	}
	return jsonResult(def)
}

func (s *Server) handleGetFullGraph(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Graphs == nil {
		return mcplib.NewToolResultError("graph reader not configured"), nil
	}
	vals, errResult := stringArgs(req, "tenant_id", "project_id", "graph_id")
	if errResult != nil {
		return errResult, nil
	}
	def, err := s.deps.Graphs.MaterializeGraph(ctx, scope.Graph(vals[0], vals[1], vals[2]))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get graph %s", vals[2]), err), nil
	}
	return jsonResult(def)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
