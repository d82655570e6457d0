// Package database defines the database store ports (interfaces). Every
// method takes an explicit scope; implementations must filter by tenant and
// project on every query.
package database

import (
	"context"

	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/task"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
)

// ListOptions paginates list calls. A zero Limit returns every row.
type ListOptions struct {
	Limit  int
	Offset int
}

// Page is one page of a paginated list plus the unpaginated total.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// ResourceKind names a table that holds project-owned rows.
type ResourceKind string

const (
	ResourceSubAgents            ResourceKind = "sub_agents"
	ResourceGraphs               ResourceKind = "agent_graphs"
	ResourceTools                ResourceKind = "tools"
	ResourceContextConfigs       ResourceKind = "context_configs"
	ResourceExternalAgents       ResourceKind = "external_agents"
	ResourceTasks                ResourceKind = "tasks"
	ResourceConversations        ResourceKind = "conversations"
	ResourceDataComponents       ResourceKind = "data_components"
	ResourceArtifactComponents   ResourceKind = "artifact_components"
	ResourceCredentialReferences ResourceKind = "credential_references"
)

// DependentResources are probed before a project delete and unioned when
// listing implied projects.
var DependentResources = []ResourceKind{
	ResourceSubAgents,
	ResourceGraphs,
	ResourceTools,
	ResourceContextConfigs,
	ResourceExternalAgents,
	ResourceTasks,
	ResourceConversations,
	ResourceDataComponents,
	ResourceArtifactComponents,
	ResourceCredentialReferences,
}

// ProjectStore manages project rows and the cross-table project probes.
type ProjectStore interface {
	GetProject(ctx context.Context, sc scope.Scope) (*project.Project, error)
	ListProjectRows(ctx context.Context, tenantID string) ([]project.Project, error)
	CreateProject(ctx context.Context, p *project.Project) error
	UpdateProject(ctx context.Context, p *project.Project) error
	DeleteProject(ctx context.Context, sc scope.Scope) error

	// HasProjectResource reports whether kind holds at least one row for the project.
	HasProjectResource(ctx context.Context, sc scope.Scope, kind ResourceKind) (bool, error)
	// DistinctProjectIDs returns the non-empty project ids referenced by kind for the tenant.
	DistinctProjectIDs(ctx context.Context, tenantID string, kind ResourceKind) ([]string, error)
}

// GraphStore manages graph rows. Graph-level methods use sc.GraphID.
type GraphStore interface {
	GetGraph(ctx context.Context, sc scope.Scope) (*agentgraph.Graph, error)
	ListGraphs(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[agentgraph.Graph], error)
	CreateGraph(ctx context.Context, sc scope.Scope, g *agentgraph.Graph) error
	UpdateGraph(ctx context.Context, sc scope.Scope, g *agentgraph.Graph) error
	DeleteGraph(ctx context.Context, sc scope.Scope) error
}

// SubAgentStore manages sub-agents of one graph.
type SubAgentStore interface {
	// ListSubAgents returns every sub-agent of sc.GraphID in one query.
	ListSubAgents(ctx context.Context, sc scope.Scope) ([]agentgraph.SubAgent, error)
	GetSubAgent(ctx context.Context, sc scope.Scope) (*agentgraph.SubAgent, error)
	CreateSubAgent(ctx context.Context, sc scope.Scope, a *agentgraph.SubAgent) error
	UpdateSubAgent(ctx context.Context, sc scope.Scope, a *agentgraph.SubAgent) error
	DeleteSubAgent(ctx context.Context, sc scope.Scope) error
}

// RelationStore manages sub-agent relations of one graph.
type RelationStore interface {
	// ListRelations returns relations ordered by id, which is creation order.
	ListRelations(ctx context.Context, sc scope.Scope) ([]agentgraph.Relation, error)
	CreateRelation(ctx context.Context, sc scope.Scope, r *agentgraph.Relation) error
	DeleteRelation(ctx context.Context, sc scope.Scope, id string) error
}

// ExternalAgentStore manages external agents of one graph.
type ExternalAgentStore interface {
	ListExternalAgents(ctx context.Context, sc scope.Scope) ([]agentgraph.ExternalAgent, error)
	GetExternalAgent(ctx context.Context, sc scope.Scope, id string) (*agentgraph.ExternalAgent, error)
	CreateExternalAgent(ctx context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error
	UpdateExternalAgent(ctx context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error
	DeleteExternalAgent(ctx context.Context, sc scope.Scope, id string) error
}

// ToolStore manages project tools and their agent bindings.
type ToolStore interface {
	GetTool(ctx context.Context, sc scope.Scope, id string) (*tool.Tool, error)
	ListTools(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[tool.Tool], error)
	CreateTool(ctx context.Context, sc scope.Scope, t *tool.Tool) error
	UpdateTool(ctx context.Context, sc scope.Scope, t *tool.Tool) error
	DeleteTool(ctx context.Context, sc scope.Scope, id string) error

	ListToolBindings(ctx context.Context, sc scope.Scope) ([]tool.AgentBinding, error)
	CreateToolBinding(ctx context.Context, sc scope.Scope, b *tool.AgentBinding) error
	UpdateToolBinding(ctx context.Context, sc scope.Scope, b *tool.AgentBinding) error
	DeleteToolBinding(ctx context.Context, sc scope.Scope, id string) error
}

// ComponentStore manages data and artifact components and their agent bindings.
type ComponentStore interface {
	GetDataComponent(ctx context.Context, sc scope.Scope, id string) (*component.DataComponent, error)
	ListDataComponents(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[component.DataComponent], error)
	CreateDataComponent(ctx context.Context, sc scope.Scope, c *component.DataComponent) error
	UpdateDataComponent(ctx context.Context, sc scope.Scope, c *component.DataComponent) error
	DeleteDataComponent(ctx context.Context, sc scope.Scope, id string) error

	GetArtifactComponent(ctx context.Context, sc scope.Scope, id string) (*component.ArtifactComponent, error)
	ListArtifactComponents(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[component.ArtifactComponent], error)
	CreateArtifactComponent(ctx context.Context, sc scope.Scope, c *component.ArtifactComponent) error
	UpdateArtifactComponent(ctx context.Context, sc scope.Scope, c *component.ArtifactComponent) error
	DeleteArtifactComponent(ctx context.Context, sc scope.Scope, id string) error

	ListDataBindings(ctx context.Context, sc scope.Scope) ([]component.Binding, error)
	CreateDataBinding(ctx context.Context, sc scope.Scope, b *component.Binding) error
	DeleteDataBinding(ctx context.Context, sc scope.Scope, id string) error

	ListArtifactBindings(ctx context.Context, sc scope.Scope) ([]component.Binding, error)
	CreateArtifactBinding(ctx context.Context, sc scope.Scope, b *component.Binding) error
	DeleteArtifactBinding(ctx context.Context, sc scope.Scope, id string) error
}

// ContextConfigStore manages context configs of a project.
type ContextConfigStore interface {
	GetContextConfig(ctx context.Context, sc scope.Scope, id string) (*contextconfig.ContextConfig, error)
	ListContextConfigs(ctx context.Context, sc scope.Scope) ([]contextconfig.ContextConfig, error)
	CreateContextConfig(ctx context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error
	UpdateContextConfig(ctx context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error
	DeleteContextConfig(ctx context.Context, sc scope.Scope, id string) error
}

// CredentialStore manages credential references of a project.
type CredentialStore interface {
	GetCredentialReference(ctx context.Context, sc scope.Scope, id string) (*credential.Reference, error)
	ListCredentialReferences(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[credential.Reference], error)
	CreateCredentialReference(ctx context.Context, sc scope.Scope, c *credential.Reference) error
	UpdateCredentialReference(ctx context.Context, sc scope.Scope, c *credential.Reference) error
	DeleteCredentialReference(ctx context.Context, sc scope.Scope, id string) error
}

// ConversationStore manages conversations and their messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, sc scope.Scope, c *conversation.Conversation) error
	GetConversation(ctx context.Context, sc scope.Scope, id string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context, sc scope.Scope, opts ListOptions) (Page[conversation.Conversation], error)
	DeleteConversation(ctx context.Context, sc scope.Scope, id string) error

	CreateMessage(ctx context.Context, sc scope.Scope, m *conversation.Message) error
	ListMessages(ctx context.Context, sc scope.Scope, conversationID string, opts ListOptions) (Page[conversation.Message], error)
}

// TaskStore manages tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, sc scope.Scope, t *task.Task) error
	GetTask(ctx context.Context, sc scope.Scope, id string) (*task.Task, error)
	ListTasks(ctx context.Context, sc scope.Scope, contextID string) ([]task.Task, error)
	UpdateTaskStatus(ctx context.Context, sc scope.Scope, id string, status task.Status) error
	DeleteTask(ctx context.Context, sc scope.Scope, id string) error
}

// LedgerStore manages the append-only artifact ledger.
type LedgerStore interface {
	CreateLedgerArtifacts(ctx context.Context, sc scope.Scope, artifacts []ledger.Artifact) error
	ListLedgerArtifactsByContext(ctx context.Context, sc scope.Scope, contextID string) ([]ledger.Artifact, error)
	ListLedgerArtifactsByTask(ctx context.Context, sc scope.Scope, taskID string) ([]ledger.Artifact, error)
	DeleteLedgerArtifactsByTask(ctx context.Context, sc scope.Scope, taskID string) (int64, error)
	DeleteLedgerArtifactsByContext(ctx context.Context, sc scope.Scope, contextID string) (int64, error)
}

// ContextCacheStore manages context cache entries. Delete methods return the
// number of rows removed.
type ContextCacheStore interface {
	GetContextCacheEntry(ctx context.Context, sc scope.Scope, key contextcache.Key) (*contextcache.Entry, error)
	// UpsertContextCacheEntry replaces any entry with the same composite key.
	UpsertContextCacheEntry(ctx context.Context, sc scope.Scope, e *contextcache.Entry) error
	DeleteContextCacheByConversation(ctx context.Context, sc scope.Scope, conversationID string) (int64, error)
	DeleteContextCacheByContextConfig(ctx context.Context, sc scope.Scope, contextConfigID string) (int64, error)
	DeleteContextCacheByVariableKey(ctx context.Context, sc scope.Scope, variableKey string) (int64, error)
	DeleteContextCacheByTenant(ctx context.Context, tenantID string) (int64, error)
}

// Store aggregates every resource store.
type Store interface {
	ProjectStore
	GraphStore
	SubAgentStore
	RelationStore
	ExternalAgentStore
	ToolStore
	ComponentStore
	ContextConfigStore
	CredentialStore
	ConversationStore
	TaskStore
	LedgerStore
	ContextCacheStore

	// InTx runs fn inside one transaction. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
