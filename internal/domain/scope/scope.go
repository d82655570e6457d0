// Package scope defines the tenant/project/graph/sub-agent tuple every store
// operation is filtered by.
package scope

import (
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// Level names how deep a Scope must be populated for an operation.
type Level int

const (
	LevelTenant Level = iota
	LevelProject
	LevelGraph
	LevelSubAgent
)

// Scope carries the identifiers that bound a query. TenantID and ProjectID
// are required for every resource; GraphID and SubAgentID narrow further.
type Scope struct {
	TenantID   string `json:"tenantId"`
	ProjectID  string `json:"projectId,omitempty"`
	GraphID    string `json:"graphId,omitempty"`
	SubAgentID string `json:"subAgentId,omitempty"`
}

// Project returns a project-level scope.
func Project(tenantID, projectID string) Scope {
	return Scope{TenantID: tenantID, ProjectID: projectID}
}

// Graph returns a graph-level scope.
func Graph(tenantID, projectID, graphID string) Scope {
	return Scope{TenantID: tenantID, ProjectID: projectID, GraphID: graphID}
}

// ProjectScope drops the graph and sub-agent components.
func (s Scope) ProjectScope() Scope {
	return Scope{TenantID: s.TenantID, ProjectID: s.ProjectID}
}

// WithGraph returns a copy narrowed to graphID. The sub-agent component is cleared.
func (s Scope) WithGraph(graphID string) Scope {
	return Scope{TenantID: s.TenantID, ProjectID: s.ProjectID, GraphID: graphID}
}

// WithSubAgent returns a copy narrowed to subAgentID.
func (s Scope) WithSubAgent(subAgentID string) Scope {
	s.SubAgentID = subAgentID
	return s
}

// Validate checks that every component required by level is set.
func (s Scope) Validate(level Level) error {
	if s.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if level >= LevelProject && s.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrValidation)
	}
	if level >= LevelGraph && s.GraphID == "" {
		return fmt.Errorf("%w: graph id is required", domain.ErrValidation)
	}
	if level >= LevelSubAgent && s.SubAgentID == "" {
		return fmt.Errorf("%w: sub-agent id is required", domain.ErrValidation)
	}
	return nil
}

// String renders the populated components, for logs and cache keys.
func (s Scope) String() string {
	out := s.TenantID
	for _, part := range []string{s.ProjectID, s.GraphID, s.SubAgentID} {
		if part == "" {
			break
		}
		out += "/" + part
	}
	return out
}
