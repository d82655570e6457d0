package agentgraph

import (
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
)

// Definition returns the sub-agent with empty adjacency lists, ready for the
// resolver to fill.
func (a *SubAgent) Definition() SubAgentDefinition {
	return SubAgentDefinition{
		ID:                 a.ID,
		Name:               a.Name,
		Description:        a.Description,
		Prompt:             a.Prompt,
		Models:             a.Models,
		StopWhen:           a.StopWhen,
		CanTransferTo:      []string{},
		CanDelegateTo:      []string{},
		CanUse:             []ToolUse{},
		DataComponents:     []string{},
		ArtifactComponents: []string{},
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// ToolUseFromBinding converts a stored binding into its canUse entry.
func ToolUseFromBinding(b *tool.AgentBinding) ToolUse {
	return ToolUse{ToolID: b.ToolID, ToolSelection: b.SelectedTools, Headers: b.Headers}
}

// BindingKey identifies a tool or component binding within a graph.
type BindingKey struct {
	SubAgentID string
	RefID      string
}

// ToolBindingKey returns the natural key of b.
func ToolBindingKey(b *tool.AgentBinding) BindingKey {
	return BindingKey{SubAgentID: b.SubAgentID, RefID: b.ToolID}
}

// ComponentBindingKey returns the natural key of a component binding.
func ComponentBindingKey(b *component.Binding) BindingKey {
	return BindingKey{SubAgentID: b.SubAgentID, RefID: b.ComponentID}
}
