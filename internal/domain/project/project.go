// Package project defines projects and the nested full-project definition
// that is the read/write boundary of the materializer.
package project

import (
	"fmt"
	"sort"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/modelcfg"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
)

// Project is the top-level container of graphs and project-scoped tools.
type Project struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenantId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Models      *modelcfg.Models   `json:"models,omitempty"`
	StopWhen    *modelcfg.StopWhen `json:"stopWhen,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}

// FullProjectDefinition is the nested, self-contained form of a project.
// Tools and components live once at the project level and are referenced by
// id from each agent.
type FullProjectDefinition struct {
	ID                   string                                    `json:"id" validate:"required"`
	Name                 string                                    `json:"name" validate:"required"`
	Description          string                                    `json:"description,omitempty"`
	Models               *modelcfg.Models                          `json:"models,omitempty"`
	StopWhen             *modelcfg.StopWhen                        `json:"stopWhen,omitempty"`
	Graphs               map[string]agentgraph.FullGraphDefinition `json:"graphs" validate:"required"`
	Tools                map[string]tool.Tool                      `json:"tools" validate:"dive"`
	DataComponents       map[string]component.DataComponent        `json:"dataComponents,omitempty" validate:"dive"`
	ArtifactComponents   map[string]component.ArtifactComponent    `json:"artifactComponents,omitempty" validate:"dive"`
	CredentialReferences map[string]credential.Reference           `json:"credentialReferences,omitempty" validate:"dive"`
	CreatedAt            string                                    `json:"createdAt,omitempty"`
	UpdatedAt            string                                    `json:"updatedAt,omitempty"`
}

// Row returns the project row for tenantID.
func (d *FullProjectDefinition) Row(tenantID string) Project {
	return Project{
		ID:          d.ID,
		TenantID:    tenantID,
		Name:        d.Name,
		Description: d.Description,
		Models:      d.Models,
		StopWhen:    d.StopWhen,
	}
}

// References collects the ids graphs may point at.
func (d *FullProjectDefinition) References() agentgraph.References {
	refs := agentgraph.References{
		Tools:              make(map[string]bool, len(d.Tools)),
		DataComponents:     make(map[string]bool, len(d.DataComponents)),
		ArtifactComponents: make(map[string]bool, len(d.ArtifactComponents)),
	}
	for id := range d.Tools {
		refs.Tools[id] = true
	}
	for id := range d.DataComponents {
		refs.DataComponents[id] = true
	}
	for id := range d.ArtifactComponents {
		refs.ArtifactComponents[id] = true
	}
	return refs
}

// Validate checks required fields, map key/id agreement, tool descriptors,
// component props schemas and every graph. It never touches storage, so a
// failure leaves nothing half-written.
func (d *FullProjectDefinition) Validate() error {
	if err := d.normalizeIDs(); err != nil {
		return err
	}
	if err := domain.ValidateStruct(d); err != nil {
		return err
	}
	for _, id := range SortedKeys(d.Tools) {
		cfg := d.Tools[id].Config
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("tool %q: %w", id, err)
		}
	}
	for _, id := range SortedKeys(d.DataComponents) {
		if err := component.ValidateProps(d.DataComponents[id].Props); err != nil {
			return fmt.Errorf("data component %q: %w", id, err)
		}
	}
	for _, id := range SortedKeys(d.ArtifactComponents) {
		if err := component.ValidateProps(d.ArtifactComponents[id].Props); err != nil {
			return fmt.Errorf("artifact component %q: %w", id, err)
		}
	}
	refs := d.References()
	configOwner := make(map[string]string, len(d.Graphs))
	for _, id := range SortedKeys(d.Graphs) {
		g := d.Graphs[id]
		if err := g.Validate(refs); err != nil {
			return err
		}
		d.Graphs[id] = g
		if g.ContextConfig == nil {
			continue
		}
		if owner, dup := configOwner[g.ContextConfig.ID]; dup {
			return fmt.Errorf("%w: context config %q is attached to graphs %q and %q",
				domain.ErrValidation, g.ContextConfig.ID, owner, id)
		}
		configOwner[g.ContextConfig.ID] = id
	}
	return nil
}

func (d *FullProjectDefinition) normalizeIDs() error {
	if err := fillIDs("graph", d.Graphs, func(g agentgraph.FullGraphDefinition) string { return g.ID },
		func(g *agentgraph.FullGraphDefinition, id string) { g.ID = id }); err != nil {
		return err
	}
	if err := fillIDs("tool", d.Tools, func(t tool.Tool) string { return t.ID },
		func(t *tool.Tool, id string) { t.ID = id }); err != nil {
		return err
	}
	if err := fillIDs("data component", d.DataComponents, func(c component.DataComponent) string { return c.ID },
		func(c *component.DataComponent, id string) { c.ID = id }); err != nil {
		return err
	}
	if err := fillIDs("artifact component", d.ArtifactComponents, func(c component.ArtifactComponent) string { return c.ID },
		func(c *component.ArtifactComponent, id string) { c.ID = id }); err != nil {
		return err
	}
	return fillIDs("credential reference", d.CredentialReferences, func(c credential.Reference) string { return c.ID },
		func(c *credential.Reference, id string) { c.ID = id })
}

func fillIDs[V any](kind string, m map[string]V, get func(V) string, set func(*V, string)) error {
	for key, v := range m {
		switch id := get(v); {
		case id == "":
			set(&v, key)
			m[key] = v
		case id != key:
			return fmt.Errorf("%w: %s key %q does not match id %q", domain.ErrValidation, kind, key, id)
		}
	}
	return nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
