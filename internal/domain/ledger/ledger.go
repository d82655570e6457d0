// Package ledger defines the append-only artifact trail produced by tasks.
package ledger

import "encoding/json"

// Part is one content part of an artifact.
type Part struct {
	Kind string          `json:"kind" validate:"required,oneof=text file data"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	File *FilePart       `json:"file,omitempty"`
}

// FilePart references file content by URI or inline bytes.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
}

// Artifact is an immutable record of a produced output.
type Artifact struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	ProjectID   string          `json:"projectId"`
	TaskID      string          `json:"taskId,omitempty"`
	ContextID   string          `json:"contextId" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parts       []Part          `json:"parts" validate:"dive"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
}
