// Package tool defines project-scoped tools and their per-agent bindings.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// ConfigType discriminates the tool descriptor variants.
type ConfigType string

const (
	ConfigMCP      ConfigType = "mcp"
	ConfigFunction ConfigType = "function"
)

// Status is the last observed health of a tool.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
	StatusNeedsAuth Status = "needs_auth"
)

// MCPTransport names how an MCP server is reached.
type MCPTransport string

const (
	TransportStreamableHTTP MCPTransport = "streamable_http"
	TransportSSE            MCPTransport = "sse"
)

// MCPServer describes a remote MCP server.
type MCPServer struct {
	URL       string       `json:"url" validate:"required,url"`
	Transport MCPTransport `json:"transport,omitempty"`
}

// MCPConfig is the descriptor for an MCP-backed tool.
type MCPConfig struct {
	Server         MCPServer `json:"server"`
	ActiveTools    []string  `json:"activeTools,omitempty"`
	ToolNamePrefix string    `json:"toolNamePrefix,omitempty"`
}

// FunctionConfig is the descriptor for an inline function tool.
type FunctionConfig struct {
	InputSchema  json.RawMessage   `json:"inputSchema,omitempty"`
	ExecuteCode  string            `json:"executeCode,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Config is a tagged union over the descriptor variants; exactly one of MCP
// or Function is set, matching Type.
type Config struct {
	Type     ConfigType      `json:"type" validate:"required,oneof=mcp function"`
	MCP      *MCPConfig      `json:"mcp,omitempty"`
	Function *FunctionConfig `json:"function,omitempty"`
}

// Validate checks that the payload matches the declared variant.
func (c *Config) Validate() error {
	switch c.Type {
	case ConfigMCP:
		if c.MCP == nil || c.Function != nil {
			return fmt.Errorf("%w: mcp tool config requires only the mcp descriptor", domain.ErrValidation)
		}
		if c.MCP.Server.URL == "" {
			return fmt.Errorf("%w: mcp server url is required", domain.ErrValidation)
		}
	case ConfigFunction:
		if c.Function == nil || c.MCP != nil {
			return fmt.Errorf("%w: function tool config requires only the function descriptor", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown tool config type %q", domain.ErrValidation, c.Type)
	}
	return nil
}

// AvailableTool is one capability advertised by a tool's server.
type AvailableTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Tool is a project-scoped tool definition.
type Tool struct {
	ID                    string            `json:"id" validate:"required"`
	Name                  string            `json:"name" validate:"required"`
	Description           string            `json:"description,omitempty"`
	Config                Config            `json:"config"`
	CredentialReferenceID string            `json:"credentialReferenceId,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	ImageURL              string            `json:"imageUrl,omitempty"`
	Status                Status            `json:"status,omitempty"`
	Capabilities          json.RawMessage   `json:"capabilities,omitempty"`
	AvailableTools        []AvailableTool   `json:"availableTools,omitempty"`
	LastError             string            `json:"lastError,omitempty"`
	CreatedAt             string            `json:"createdAt,omitempty"`
	UpdatedAt             string            `json:"updatedAt,omitempty"`
}

// AgentBinding joins a sub-agent to a tool. SelectedTools is a whitelist of
// tool capabilities; nil means "all". Headers are per-binding HTTP headers.
type AgentBinding struct {
	ID            string            `json:"id"`
	GraphID       string            `json:"graphId"`
	SubAgentID    string            `json:"subAgentId"`
	ToolID        string            `json:"toolId"`
	SelectedTools []string          `json:"selectedTools"`
	Headers       map[string]string `json:"headers"`
	CreatedAt     string            `json:"createdAt,omitempty"`
	UpdatedAt     string            `json:"updatedAt,omitempty"`
}
