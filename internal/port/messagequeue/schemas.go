package messagequeue

// ProjectChangedPayload is the schema for projects.updated and
// projects.deleted messages.
type ProjectChangedPayload struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	GraphID   string `json:"graph_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
