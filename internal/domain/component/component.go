// Package component defines the structured-output components (data and
// artifact) that sub-agents can emit, and their agent bindings.
package component

import "encoding/json"

// DataComponent is a project-scoped structured-output schema.
type DataComponent struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Props       json.RawMessage `json:"props,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// ArtifactComponent is a structured-output schema whose properties are split
// into a preview subset (flagged inPreview) and the full set.
type ArtifactComponent struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Props       json.RawMessage `json:"props,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// Binding joins a sub-agent to a data or artifact component.
type Binding struct {
	ID          string `json:"id"`
	GraphID     string `json:"graphId"`
	SubAgentID  string `json:"subAgentId"`
	ComponentID string `json:"componentId"`
	CreatedAt   string `json:"createdAt,omitempty"`
}
