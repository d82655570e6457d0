package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Strob0t/agentgraph/internal/adapter/memory"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/modelcfg"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

const testTenant = "tenant-1"

// clock is a settable time source shared by the store and the services.
type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store    *memory.Store
	graphs   *GraphService
	projects *ProjectService
	clock    *clock
}

func newFixture() *fixture {
	c := newClock()
	st := memory.NewStore().WithClock(c.now)
	graphs := NewGraphService(st, nil)
	graphs.now = c.now
	projects := NewProjectService(st, graphs, nil)
	projects.now = c.now
	return &fixture{store: st, graphs: graphs, projects: projects, clock: c}
}

// scenarioProject is p1 with graph g1: a1 (default) transfers to a2, and a2
// is bound to t1 with an empty selection.
func scenarioProject() *project.FullProjectDefinition {
	return &project.FullProjectDefinition{
		ID:   "p1",
		Name: "Scenario",
		Graphs: map[string]agentgraph.FullGraphDefinition{
			"g1": {
				ID:                "g1",
				Name:              "Main",
				DefaultSubAgentID: "a1",
				SubAgents: map[string]agentgraph.SubAgentDefinition{
					"a1": {ID: "a1", Name: "Router", CanTransferTo: []string{"a2"}},
					"a2": {ID: "a2", Name: "Worker", CanUse: []agentgraph.ToolUse{{ToolID: "t1", ToolSelection: []string{}}}},
				},
			},
		},
		Tools: map[string]tool.Tool{
			"t1": {ID: "t1", Name: "Search", Config: tool.Config{
				Type: tool.ConfigMCP,
				MCP:  &tool.MCPConfig{Server: tool.MCPServer{URL: "https://mcp.example.com/search"}},
			}},
		},
	}
}

// richProject exercises every collection of the nested definition.
func richProject() *project.FullProjectDefinition {
	steps := 8
	return &project.FullProjectDefinition{
		ID:          "p-rich",
		Name:        "Support desk",
		Description: "Triage and answer tickets",
		StopWhen:    &modelcfg.StopWhen{TransferCountIs: &steps},
		Graphs: map[string]agentgraph.FullGraphDefinition{
			"support": {
				ID:                "support",
				Name:              "Support",
				DefaultSubAgentID: "triage",
				Models:            &modelcfg.Models{Base: &modelcfg.Settings{Model: "gpt-4o"}},
				GraphPrompt:       "Be concise.",
				ContextConfig: &contextconfig.ContextConfig{
					ID:   "ctx-support",
					Name: "Customer",
					ContextVariables: map[string]contextconfig.Variable{
						"customer": {
							ID:          "customer",
							Trigger:     contextconfig.TriggerInvocation,
							FetchConfig: contextconfig.FetchConfig{URL: "https://crm.example.com/customer"},
						},
					},
				},
				SubAgents: map[string]agentgraph.SubAgentDefinition{
					"triage": {
						ID:                 "triage",
						Name:               "Triage",
						Prompt:             "Route the ticket.",
						CanTransferTo:      []string{"billing", "tech"},
						CanDelegateTo:      []string{"escalation"},
						CanUse:             []agentgraph.ToolUse{},
						DataComponents:     []string{"ticket"},
						ArtifactComponents: []string{},
					},
					"billing": {
						ID:            "billing",
						Name:          "Billing",
						CanTransferTo: []string{"triage"},
						CanDelegateTo: []string{},
						CanUse: []agentgraph.ToolUse{
							{ToolID: "invoices", ToolSelection: []string{"lookup", "refund"}, Headers: map[string]string{"X-Team": "billing"}},
						},
						DataComponents:     []string{},
						ArtifactComponents: []string{"receipt"},
					},
					"tech": {
						ID:                 "tech",
						Name:               "Tech",
						CanTransferTo:      []string{},
						CanDelegateTo:      []string{"triage"},
						CanUse:             []agentgraph.ToolUse{{ToolID: "invoices"}},
						DataComponents:     []string{"ticket"},
						ArtifactComponents: []string{},
					},
				},
				ExternalAgents: map[string]agentgraph.ExternalAgent{
					"escalation": {
						ID:                    "escalation",
						Name:                  "Escalation desk",
						BaseURL:               "https://escalation.example.com/a2a",
						CredentialReferenceID: "cred-1",
					},
				},
			},
		},
		Tools: map[string]tool.Tool{
			"invoices": {ID: "invoices", Name: "Invoices", Status: tool.StatusHealthy, Config: tool.Config{
				Type: tool.ConfigMCP,
				MCP:  &tool.MCPConfig{Server: tool.MCPServer{URL: "https://mcp.example.com/invoices"}},
			}},
		},
		DataComponents: map[string]component.DataComponent{
			"ticket": {ID: "ticket", Name: "Ticket", Props: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}}}`)},
		},
		ArtifactComponents: map[string]component.ArtifactComponent{
			"receipt": {ID: "receipt", Name: "Receipt", Props: json.RawMessage(`{"type":"object","properties":{"total":{"type":"number"}}}`)},
		},
		CredentialReferences: map[string]credential.Reference{
			"cred-1": {ID: "cred-1", Type: credential.StoreMemory, CredentialStoreID: "vault"},
		},
	}
}

// withoutTimestamps clears every storage-owned timestamp of def.
func withoutTimestamps(def *project.FullProjectDefinition) *project.FullProjectDefinition {
	out := *def
	out.CreatedAt, out.UpdatedAt = "", ""
	out.Graphs = make(map[string]agentgraph.FullGraphDefinition, len(def.Graphs))
	for id, g := range def.Graphs {
		g.CreatedAt, g.UpdatedAt = "", ""
		agents := make(map[string]agentgraph.SubAgentDefinition, len(g.SubAgents))
		for aid, a := range g.SubAgents {
			a.CreatedAt, a.UpdatedAt = "", ""
			agents[aid] = a
		}
		g.SubAgents = agents
		if g.ExternalAgents != nil {
			externals := make(map[string]agentgraph.ExternalAgent, len(g.ExternalAgents))
			for eid, e := range g.ExternalAgents {
				e.CreatedAt, e.UpdatedAt = "", ""
				externals[eid] = e
			}
			g.ExternalAgents = externals
		}
		if g.ContextConfig != nil {
			cc := *g.ContextConfig
			cc.CreatedAt, cc.UpdatedAt = "", ""
			g.ContextConfig = &cc
		}
		out.Graphs[id] = g
	}
	out.Tools = make(map[string]tool.Tool, len(def.Tools))
	for id, t := range def.Tools {
		t.CreatedAt, t.UpdatedAt = "", ""
		out.Tools[id] = t
	}
	if def.DataComponents != nil {
		out.DataComponents = make(map[string]component.DataComponent, len(def.DataComponents))
		for id, c := range def.DataComponents {
			c.CreatedAt, c.UpdatedAt = "", ""
			out.DataComponents[id] = c
		}
	}
	if def.ArtifactComponents != nil {
		out.ArtifactComponents = make(map[string]component.ArtifactComponent, len(def.ArtifactComponents))
		for id, c := range def.ArtifactComponents {
			c.CreatedAt, c.UpdatedAt = "", ""
			out.ArtifactComponents[id] = c
		}
	}
	if def.CredentialReferences != nil {
		out.CredentialReferences = make(map[string]credential.Reference, len(def.CredentialReferences))
		for id, c := range def.CredentialReferences {
			c.CreatedAt, c.UpdatedAt = "", ""
			out.CredentialReferences[id] = c
		}
	}
	return &out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// nilStore fails the test on any call: every method dereferences the nil
// embedded interface.
type nilStore struct {
	database.Store
}

func mustCreate(t *testing.T, f *fixture, def *project.FullProjectDefinition) *project.FullProjectDefinition {
	t.Helper()
	out, err := f.projects.CreateFullProject(context.Background(), testTenant, def)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return out
}
