package agentgraph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/modelcfg"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
)

// ToolUse is one entry of an agent's canUse list. ToolSelection and Headers
// encode as null when unset, never as absent.
type ToolUse struct {
	ToolID        string            `json:"toolId" validate:"required"`
	ToolSelection []string          `json:"toolSelection"`
	Headers       map[string]string `json:"headers"`
}

// SubAgentDefinition is a sub-agent with its adjacency lists inlined.
type SubAgentDefinition struct {
	ID                 string             `json:"id" validate:"required"`
	Name               string             `json:"name" validate:"required"`
	Description        string             `json:"description,omitempty"`
	Prompt             string             `json:"prompt,omitempty"`
	Models             *modelcfg.Models   `json:"models,omitempty"`
	StopWhen           *modelcfg.StopWhen `json:"stopWhen,omitempty"`
	CanTransferTo      []string           `json:"canTransferTo"`
	CanDelegateTo      []string           `json:"canDelegateTo"`
	CanUse             []ToolUse          `json:"canUse" validate:"dive"`
	DataComponents     []string           `json:"dataComponents"`
	ArtifactComponents []string           `json:"artifactComponents"`
	CreatedAt          string             `json:"createdAt,omitempty"`
	UpdatedAt          string             `json:"updatedAt,omitempty"`
}

// FullGraphDefinition is the nested, self-contained form of one graph.
type FullGraphDefinition struct {
	ID                string                        `json:"id" validate:"required"`
	Name              string                        `json:"name" validate:"required"`
	Description       string                        `json:"description,omitempty"`
	DefaultSubAgentID string                        `json:"defaultSubAgentId,omitempty"`
	SubAgents         map[string]SubAgentDefinition `json:"agents" validate:"required,dive"`
	ExternalAgents    map[string]ExternalAgent      `json:"externalAgents,omitempty" validate:"dive"`
	Models            *modelcfg.Models              `json:"models,omitempty"`
	StopWhen          *modelcfg.StopWhen            `json:"stopWhen,omitempty"`
	ContextConfig     *contextconfig.ContextConfig  `json:"contextConfig,omitempty"`
	GraphPrompt       string                        `json:"graphPrompt,omitempty"`
	CreatedAt         string                        `json:"createdAt,omitempty"`
	UpdatedAt         string                        `json:"updatedAt,omitempty"`
}

// References holds the project-level ids a graph definition may point at.
type References struct {
	Tools              map[string]bool
	DataComponents     map[string]bool
	ArtifactComponents map[string]bool
}

// NormalizeIDs fills empty ids from their map keys and rejects a key whose
// entry names a different id.
func (d *FullGraphDefinition) NormalizeIDs() error {
	for key, a := range d.SubAgents {
		if a.ID == "" {
			a.ID = key
			d.SubAgents[key] = a
		} else if a.ID != key {
			return fmt.Errorf("%w: graph %q agent key %q does not match id %q", domain.ErrValidation, d.ID, key, a.ID)
		}
	}
	for key, e := range d.ExternalAgents {
		if e.ID == "" {
			e.ID = key
			d.ExternalAgents[key] = e
		} else if e.ID != key {
			return fmt.Errorf("%w: graph %q external agent key %q does not match id %q", domain.ErrValidation, d.ID, key, e.ID)
		}
	}
	if d.ContextConfig != nil {
		d.ContextConfig.Normalize()
	}
	return nil
}

// Validate checks the definition against itself and the project references.
// It never touches storage.
func (d *FullGraphDefinition) Validate(refs References) error {
	if err := d.NormalizeIDs(); err != nil {
		return err
	}
	if err := domain.ValidateStruct(d); err != nil {
		return fmt.Errorf("graph %q: %w", d.ID, err)
	}
	if len(d.SubAgents) > 0 {
		if d.DefaultSubAgentID == "" {
			return fmt.Errorf("%w: graph %q has agents but no defaultSubAgentId", domain.ErrValidation, d.ID)
		}
		if _, ok := d.SubAgents[d.DefaultSubAgentID]; !ok {
			return fmt.Errorf("%w: graph %q default agent %q is not one of its agents", domain.ErrValidation, d.ID, d.DefaultSubAgentID)
		}
	}
	for id := range d.ExternalAgents {
		if _, clash := d.SubAgents[id]; clash {
			return fmt.Errorf("%w: graph %q id %q is both an agent and an external agent", domain.ErrValidation, d.ID, id)
		}
	}
	if d.ContextConfig != nil {
		if err := d.ContextConfig.Validate(); err != nil {
			return fmt.Errorf("graph %q: %w", d.ID, err)
		}
	}
	for _, id := range sortedKeys(d.SubAgents) {
		if err := d.validateAgent(d.SubAgents[id], refs); err != nil {
			return err
		}
	}
	return nil
}

func (d *FullGraphDefinition) validateAgent(a SubAgentDefinition, refs References) error {
	for _, list := range [][]string{a.CanTransferTo, a.CanDelegateTo} {
		for _, target := range list {
			_, internal := d.SubAgents[target]
			_, external := d.ExternalAgents[target]
			if !internal && !external {
				return fmt.Errorf("%w: agent %q references unknown agent %q", domain.ErrValidation, a.ID, target)
			}
		}
	}
	seen := make(map[string]bool, len(a.CanUse))
	for _, use := range a.CanUse {
		if !refs.Tools[use.ToolID] {
			return fmt.Errorf("%w: agent %q uses unknown tool %q", domain.ErrValidation, a.ID, use.ToolID)
		}
		if seen[use.ToolID] {
			return fmt.Errorf("%w: agent %q binds tool %q twice", domain.ErrValidation, a.ID, use.ToolID)
		}
		seen[use.ToolID] = true
	}
	for _, id := range a.DataComponents {
		if !refs.DataComponents[id] {
			return fmt.Errorf("%w: agent %q references unknown data component %q", domain.ErrValidation, a.ID, id)
		}
	}
	for _, id := range a.ArtifactComponents {
		if !refs.ArtifactComponents[id] {
			return fmt.Errorf("%w: agent %q references unknown artifact component %q", domain.ErrValidation, a.ID, id)
		}
	}
	return nil
}

// Rows is the normalized form of a graph definition. Relation and binding
// ids are left empty for the caller to assign.
type Rows struct {
	Graph            Graph
	SubAgents        []SubAgent
	ExternalAgents   []ExternalAgent
	Relations        []Relation
	ToolBindings     []tool.AgentBinding
	DataBindings     []component.Binding
	ArtifactBindings []component.Binding
	ContextConfig    *contextconfig.ContextConfig
}

// Rows converts the definition into rows for projectID, inverting the
// adjacency lists into relation rows. Agents are emitted in id order and
// relations in adjacency order; duplicate adjacency entries collapse.
func (d *FullGraphDefinition) Rows(projectID string) Rows {
	out := Rows{
		Graph: Graph{
			ID:                d.ID,
			ProjectID:         projectID,
			Name:              d.Name,
			Description:       d.Description,
			DefaultSubAgentID: d.DefaultSubAgentID,
			Models:            d.Models,
			StopWhen:          d.StopWhen,
			GraphPrompt:       d.GraphPrompt,
		},
	}
	if d.ContextConfig != nil {
		cc := *d.ContextConfig
		cc.GraphID = d.ID
		out.ContextConfig = &cc
		out.Graph.ContextConfigID = cc.ID
	}
	for _, id := range sortedKeys(d.ExternalAgents) {
		e := d.ExternalAgents[id]
		e.GraphID = d.ID
		out.ExternalAgents = append(out.ExternalAgents, e)
	}
	seen := make(map[RelationKey]bool)
	for _, id := range sortedKeys(d.SubAgents) {
		a := d.SubAgents[id]
		out.SubAgents = append(out.SubAgents, SubAgent{
			ID:          a.ID,
			GraphID:     d.ID,
			Name:        a.Name,
			Description: a.Description,
			Prompt:      a.Prompt,
			Models:      a.Models,
			StopWhen:    a.StopWhen,
		})
		for _, rt := range []RelationType{RelationTransfer, RelationDelegate} {
			targets := a.CanTransferTo
			if rt == RelationDelegate {
				targets = a.CanDelegateTo
			}
			for _, target := range targets {
				rel := Relation{GraphID: d.ID, SourceSubAgentID: a.ID, Type: rt, Target: d.target(target)}
				if k := rel.Key(); !seen[k] {
					seen[k] = true
					out.Relations = append(out.Relations, rel)
				}
			}
		}
		for _, use := range a.CanUse {
			out.ToolBindings = append(out.ToolBindings, tool.AgentBinding{
				GraphID:       d.ID,
				SubAgentID:    a.ID,
				ToolID:        use.ToolID,
				SelectedTools: use.ToolSelection,
				Headers:       use.Headers,
			})
		}
		for _, cid := range dedupe(a.DataComponents) {
			out.DataBindings = append(out.DataBindings, component.Binding{GraphID: d.ID, SubAgentID: a.ID, ComponentID: cid})
		}
		for _, cid := range dedupe(a.ArtifactComponents) {
			out.ArtifactBindings = append(out.ArtifactBindings, component.Binding{GraphID: d.ID, SubAgentID: a.ID, ComponentID: cid})
		}
	}
	return out
}

func (d *FullGraphDefinition) target(id string) Target {
	if _, ok := d.ExternalAgents[id]; ok {
		return ExternalTarget{ExternalAgentID: id}
	}
	return InternalTarget{SubAgentID: id}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
