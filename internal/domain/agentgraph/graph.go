// Package agentgraph defines agent orchestration graphs: the normalized rows
// (graphs, sub-agents, relations, external agents) and the nested graph
// definition they materialize into.
package agentgraph

import (
	"github.com/Strob0t/agentgraph/internal/domain/modelcfg"
)

// Graph is a directed graph of cooperating sub-agents inside a project.
type Graph struct {
	ID                string             `json:"id"`
	ProjectID         string             `json:"projectId"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	DefaultSubAgentID string             `json:"defaultSubAgentId,omitempty"`
	ContextConfigID   string             `json:"contextConfigId,omitempty"`
	Models            *modelcfg.Models   `json:"models,omitempty"`
	StopWhen          *modelcfg.StopWhen `json:"stopWhen,omitempty"`
	GraphPrompt       string             `json:"graphPrompt,omitempty"`
	CreatedAt         string             `json:"createdAt,omitempty"`
	UpdatedAt         string             `json:"updatedAt,omitempty"`
}

// SubAgent is an internal node of a graph.
type SubAgent struct {
	ID          string             `json:"id"`
	GraphID     string             `json:"graphId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Prompt      string             `json:"prompt,omitempty"`
	Models      *modelcfg.Models   `json:"models,omitempty"`
	StopWhen    *modelcfg.StopWhen `json:"stopWhen,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}
