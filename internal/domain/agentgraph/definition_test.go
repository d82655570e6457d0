package agentgraph_test

import (
	"errors"
	"testing"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
)

func refs() agentgraph.References {
	return agentgraph.References{
		Tools:              map[string]bool{"t1": true},
		DataComponents:     map[string]bool{"dc1": true},
		ArtifactComponents: map[string]bool{"ac1": true},
	}
}

func validGraph() agentgraph.FullGraphDefinition {
	return agentgraph.FullGraphDefinition{
		ID:                "g1",
		Name:              "Support",
		DefaultSubAgentID: "a1",
		SubAgents: map[string]agentgraph.SubAgentDefinition{
			"a1": {Name: "Router", CanTransferTo: []string{"a2"}, CanDelegateTo: []string{"ext"}},
			"a2": {Name: "Billing", CanUse: []agentgraph.ToolUse{{ToolID: "t1", ToolSelection: []string{}}}, DataComponents: []string{"dc1"}},
		},
		ExternalAgents: map[string]agentgraph.ExternalAgent{
			"ext": {Name: "Remote", BaseURL: "https://remote.example.com"},
		},
	}
}

func TestValidateFillsIDs(t *testing.T) {
	g := validGraph()
	if err := g.Validate(refs()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if g.SubAgents["a1"].ID != "a1" || g.ExternalAgents["ext"].ID != "ext" {
		t.Errorf("ids not filled: %+v", g.SubAgents)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*agentgraph.FullGraphDefinition)
	}{
		{"missing name", func(g *agentgraph.FullGraphDefinition) { g.Name = "" }},
		{"missing agents", func(g *agentgraph.FullGraphDefinition) { g.SubAgents = nil }},
		{"dangling default", func(g *agentgraph.FullGraphDefinition) { g.DefaultSubAgentID = "nope" }},
		{"no default", func(g *agentgraph.FullGraphDefinition) { g.DefaultSubAgentID = "" }},
		{"key mismatch", func(g *agentgraph.FullGraphDefinition) {
			a := g.SubAgents["a2"]
			a.ID = "other"
			g.SubAgents["a2"] = a
		}},
		{"unknown transfer target", func(g *agentgraph.FullGraphDefinition) {
			a := g.SubAgents["a1"]
			a.CanTransferTo = []string{"ghost"}
			g.SubAgents["a1"] = a
		}},
		{"unknown tool", func(g *agentgraph.FullGraphDefinition) {
			a := g.SubAgents["a2"]
			a.CanUse = []agentgraph.ToolUse{{ToolID: "t9"}}
			g.SubAgents["a2"] = a
		}},
		{"duplicate tool", func(g *agentgraph.FullGraphDefinition) {
			a := g.SubAgents["a2"]
			a.CanUse = []agentgraph.ToolUse{{ToolID: "t1"}, {ToolID: "t1"}}
			g.SubAgents["a2"] = a
		}},
		{"unknown data component", func(g *agentgraph.FullGraphDefinition) {
			a := g.SubAgents["a2"]
			a.DataComponents = []string{"dc9"}
			g.SubAgents["a2"] = a
		}},
		{"external id clashes with agent", func(g *agentgraph.FullGraphDefinition) {
			g.ExternalAgents["a2"] = agentgraph.ExternalAgent{Name: "x", BaseURL: "https://x.example.com"}
		}},
		{"external without url", func(g *agentgraph.FullGraphDefinition) {
			g.ExternalAgents["ext"] = agentgraph.ExternalAgent{Name: "Remote"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGraph()
			tt.mutate(&g)
			if err := g.Validate(refs()); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRowsInvertsAdjacency(t *testing.T) {
	g := validGraph()
	if err := g.Validate(refs()); err != nil {
		t.Fatal(err)
	}
	a1 := g.SubAgents["a1"]
	a1.CanTransferTo = append(a1.CanTransferTo, "a2")
	g.SubAgents["a1"] = a1

	rows := g.Rows("p1")
	if rows.Graph.ProjectID != "p1" || rows.Graph.DefaultSubAgentID != "a1" {
		t.Errorf("unexpected graph row: %+v", rows.Graph)
	}
	if len(rows.SubAgents) != 2 || rows.SubAgents[0].ID != "a1" {
		t.Fatalf("expected agents in id order, got %+v", rows.SubAgents)
	}
	if len(rows.Relations) != 2 {
		t.Fatalf("expected duplicate transfer to collapse, got %d relations", len(rows.Relations))
	}
	if k := rows.Relations[0].Kind(); k != agentgraph.KindInternalTransfer {
		t.Errorf("first relation kind = %s", k)
	}
	if k := rows.Relations[1].Kind(); k != agentgraph.KindExternalDelegate {
		t.Errorf("second relation kind = %s", k)
	}
	if len(rows.ToolBindings) != 1 || rows.ToolBindings[0].SelectedTools == nil {
		t.Errorf("expected empty-but-present tool selection, got %+v", rows.ToolBindings)
	}
	if len(rows.DataBindings) != 1 || rows.DataBindings[0].ComponentID != "dc1" {
		t.Errorf("unexpected data bindings: %+v", rows.DataBindings)
	}
	if len(rows.ExternalAgents) != 1 || rows.ExternalAgents[0].GraphID != "g1" {
		t.Errorf("unexpected external agents: %+v", rows.ExternalAgents)
	}
}
