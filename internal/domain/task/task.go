// Package task defines the Task domain entity.
package task

import "encoding/json"

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is a unit of work executed by a sub-agent within a context.
type Task struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenantId"`
	ProjectID  string          `json:"projectId"`
	GraphID    string          `json:"graphId,omitempty"`
	SubAgentID string          `json:"subAgentId,omitempty"`
	ContextID  string          `json:"contextId"`
	Status     Status          `json:"status"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  string          `json:"createdAt,omitempty"`
	UpdatedAt  string          `json:"updatedAt,omitempty"`
}
