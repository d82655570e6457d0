package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

const conversationColumns = `id, tenant_id, project_id, user_id, active_sub_agent_id, title, metadata, created_at, updated_at`

func scanConversation(row scannable) (conversation.Conversation, error) {
	var c conversation.Conversation
	var userID, active *string
	var metadata []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.ProjectID, &userID, &active, &c.Title, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.UserID = deref(userID)
	c.ActiveSubAgentID = deref(active)
	c.Metadata = rawJSON(metadata)
	return c, nil
}

func (s *Store) CreateConversation(ctx context.Context, sc scope.Scope, c *conversation.Conversation) error {
	ensureID(&c.ID)
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO conversations (`+conversationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		c.ID, sc.TenantID, sc.ProjectID, nullIfEmpty(c.UserID), nullIfEmpty(c.ActiveSubAgentID), c.Title,
		nullJSON(c.Metadata), now)
	if err != nil {
		return writeErr(err, "create conversation %s", c.ID)
	}
	c.TenantID, c.ProjectID = sc.TenantID, sc.ProjectID
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *Store) GetConversation(ctx context.Context, sc scope.Scope, id string) (*conversation.Conversation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFoundWrap(err, "get conversation %s", id)
	}
	return &c, nil
}

func (s *Store) ListConversations(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[conversation.Conversation], error) {
	var page database.Page[conversation.Conversation]
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM conversations WHERE tenant_id = $1 AND project_id = $2`,
		sc.TenantID, sc.ProjectID).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count conversations %s: %w", sc, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY updated_at DESC, id LIMIT $3 OFFSET $4`,
		sc.TenantID, sc.ProjectID, limitArg(opts), opts.Offset)
	page.Items, err = collect(rows, err, scanConversation, "list conversations")
	return page, err
}

func (s *Store) DeleteConversation(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM conversations WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete conversation %s", id)
}

const messageColumns = `id, tenant_id, project_id, conversation_id, role, from_sub_agent_id, to_sub_agent_id,
	content, task_id, created_at`

func scanMessage(row scannable) (conversation.Message, error) {
	var m conversation.Message
	var from, to, taskID *string
	var content []byte
	err := row.Scan(&m.ID, &m.TenantID, &m.ProjectID, &m.ConversationID, &m.Role, &from, &to, &content, &taskID, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.FromSubAgentID = deref(from)
	m.ToSubAgentID = deref(to)
	m.TaskID = deref(taskID)
	m.Content = rawJSON(content)
	return m, nil
}

// CreateMessage appends m and bumps the conversation's updated_at.
func (s *Store) CreateMessage(ctx context.Context, sc scope.Scope, m *conversation.Message) error {
	ensureID(&m.ID)
	content := nullJSON(m.Content)
	if content == nil {
		content = []byte("null")
	}
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, sc.TenantID, sc.ProjectID, m.ConversationID, m.Role, nullIfEmpty(m.FromSubAgentID),
		nullIfEmpty(m.ToSubAgentID), content, nullIfEmpty(m.TaskID), now)
	if err != nil {
		return writeErr(err, "create message in conversation %s", m.ConversationID)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $4 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, m.ConversationID, now)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", m.ConversationID, err)
	}
	m.TenantID, m.ProjectID = sc.TenantID, sc.ProjectID
	m.CreatedAt = now
	return nil
}

func (s *Store) ListMessages(ctx context.Context, sc scope.Scope, conversationID string, opts database.ListOptions) (database.Page[conversation.Message], error) {
	var page database.Page[conversation.Message]
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE tenant_id = $1 AND project_id = $2 AND conversation_id = $3`,
		sc.TenantID, sc.ProjectID, conversationID).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count messages %s: %w", conversationID, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE tenant_id = $1 AND project_id = $2 AND conversation_id = $3
		 ORDER BY created_at, id LIMIT $4 OFFSET $5`,
		sc.TenantID, sc.ProjectID, conversationID, limitArg(opts), opts.Offset)
	page.Items, err = collect(rows, err, scanMessage, "list messages")
	return page, err
}
