package conversation

import "encoding/json"

// Conversation is a chat thread tied to a project and optionally an agent.
type Conversation struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenantId"`
	ProjectID        string          `json:"projectId"`
	UserID           string          `json:"userId,omitempty"`
	ActiveSubAgentID string          `json:"activeSubAgentId,omitempty"`
	Title            string          `json:"title,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        string          `json:"createdAt,omitempty"`
	UpdatedAt        string          `json:"updatedAt,omitempty"`
}

// Message is a single message in a conversation.
type Message struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	ProjectID      string          `json:"projectId"`
	ConversationID string          `json:"conversationId"`
	Role           string          `json:"role"` // "user", "agent", "system"
	FromSubAgentID string          `json:"fromSubAgentId,omitempty"`
	ToSubAgentID   string          `json:"toSubAgentId,omitempty"`
	Content        json.RawMessage `json:"content"`
	TaskID         string          `json:"taskId,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
}
