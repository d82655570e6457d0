package project_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
)

func validProject() project.FullProjectDefinition {
	return project.FullProjectDefinition{
		ID:   "p1",
		Name: "Demo",
		Graphs: map[string]agentgraph.FullGraphDefinition{
			"g1": {
				Name:              "Main",
				DefaultSubAgentID: "a1",
				SubAgents: map[string]agentgraph.SubAgentDefinition{
					"a1": {Name: "First", CanTransferTo: []string{"a2"}},
					"a2": {Name: "Second", CanUse: []agentgraph.ToolUse{{ToolID: "t1", ToolSelection: []string{}}}},
				},
			},
		},
		Tools: map[string]tool.Tool{
			"t1": {Name: "Search", Config: tool.Config{Type: tool.ConfigMCP, MCP: &tool.MCPConfig{Server: tool.MCPServer{URL: "https://mcp.example.com"}}}},
		},
		DataComponents: map[string]component.DataComponent{
			"dc1": {Name: "Order", Props: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}}}`)},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	p := validProject()
	if err := p.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Graphs["g1"].ID != "g1" || p.Tools["t1"].ID != "t1" {
		t.Error("expected ids filled from keys")
	}
	if p.Graphs["g1"].SubAgents["a2"].ID != "a2" {
		t.Error("expected nested agent ids filled from keys")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*project.FullProjectDefinition)
	}{
		{"missing id", func(p *project.FullProjectDefinition) { p.ID = "" }},
		{"missing name", func(p *project.FullProjectDefinition) { p.Name = "" }},
		{"missing graphs", func(p *project.FullProjectDefinition) { p.Graphs = nil }},
		{"bad tool config", func(p *project.FullProjectDefinition) {
			p.Tools["t1"] = tool.Tool{Name: "Search", Config: tool.Config{Type: tool.ConfigFunction}}
		}},
		{"tool key mismatch", func(p *project.FullProjectDefinition) {
			p.Tools["t1"] = tool.Tool{ID: "t2", Name: "Search", Config: tool.Config{Type: tool.ConfigFunction, Function: &tool.FunctionConfig{}}}
		}},
		{"invalid props", func(p *project.FullProjectDefinition) {
			p.DataComponents["dc1"] = component.DataComponent{Name: "Order", Props: json.RawMessage(`{"type":"string"}`)}
		}},
		{"graph references missing tool", func(p *project.FullProjectDefinition) { delete(p.Tools, "t1") }},
		{"context config shared by two graphs", func(p *project.FullProjectDefinition) {
			g1 := p.Graphs["g1"]
			g1.ContextConfig = &contextconfig.ContextConfig{ID: "c1"}
			p.Graphs["g1"] = g1
			p.Graphs["g2"] = agentgraph.FullGraphDefinition{
				Name:          "Side",
				SubAgents:     map[string]agentgraph.SubAgentDefinition{},
				ContextConfig: &contextconfig.ContextConfig{ID: "c1"},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProject()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	p := validProject()
	refs := p.References()
	if !refs.Tools["t1"] || !refs.DataComponents["dc1"] || refs.ArtifactComponents["dc1"] {
		t.Errorf("unexpected references: %+v", refs)
	}
}
