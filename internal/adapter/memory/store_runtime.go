package memory

import (
	"context"

	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/task"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// --- Conversations ---

func (s *Store) CreateConversation(_ context.Context, sc scope.Scope, c *conversation.Conversation) error {
	defer s.write()()
	ensureID(&c.ID)
	if _, ok := s.data.conversations.get(sc.TenantID, sc.ProjectID, "", c.ID); ok {
		return conflict("conversation", c.ID)
	}
	c.TenantID, c.ProjectID = sc.TenantID, sc.ProjectID
	c.CreatedAt, c.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.conversations.put(record[conversation.Conversation]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) GetConversation(_ context.Context, sc scope.Scope, id string) (*conversation.Conversation, error) {
	defer s.read()()
	c, ok := s.data.conversations.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("conversation", id)
	}
	return &c, nil
}

func (s *Store) ListConversations(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[conversation.Conversation], error) {
	defer s.read()()
	return paginate(s.data.conversations.where(projectRows[conversation.Conversation](sc)), opts), nil
}

// DeleteConversation removes the conversation and its messages.
func (s *Store) DeleteConversation(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.conversations.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("conversation", id)
	}
	s.data.messages.deleteWhere(func(r record[conversation.Message]) bool {
		return projectRows[conversation.Message](sc)(r) && r.v.ConversationID == id
	})
	return nil
}

func (s *Store) CreateMessage(_ context.Context, sc scope.Scope, m *conversation.Message) error {
	defer s.write()()
	c, ok := s.data.conversations.get(sc.TenantID, sc.ProjectID, "", m.ConversationID)
	if !ok {
		return notFound("conversation", m.ConversationID)
	}
	ensureID(&m.ID)
	m.TenantID, m.ProjectID = sc.TenantID, sc.ProjectID
	m.CreatedAt = s.timestamp()
	s.data.messages.put(record[conversation.Message]{tenant: sc.TenantID, project: sc.ProjectID, id: m.ID, v: *m})
	c.UpdatedAt = m.CreatedAt
	s.data.conversations.put(record[conversation.Conversation]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: c})
	return nil
}

func (s *Store) ListMessages(_ context.Context, sc scope.Scope, conversationID string, opts database.ListOptions) (database.Page[conversation.Message], error) {
	defer s.read()()
	msgs := s.data.messages.where(func(r record[conversation.Message]) bool {
		return projectRows[conversation.Message](sc)(r) && r.v.ConversationID == conversationID
	})
	return paginate(msgs, opts), nil
}

// --- Tasks ---

func (s *Store) CreateTask(_ context.Context, sc scope.Scope, t *task.Task) error {
	defer s.write()()
	ensureID(&t.ID)
	if _, ok := s.data.tasks.get(sc.TenantID, sc.ProjectID, "", t.ID); ok {
		return conflict("task", t.ID)
	}
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	t.TenantID, t.ProjectID = sc.TenantID, sc.ProjectID
	t.CreatedAt, t.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.tasks.put(record[task.Task]{tenant: sc.TenantID, project: sc.ProjectID, id: t.ID, v: *t})
	return nil
}

func (s *Store) GetTask(_ context.Context, sc scope.Scope, id string) (*task.Task, error) {
	defer s.read()()
	t, ok := s.data.tasks.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("task", id)
	}
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context, sc scope.Scope, contextID string) ([]task.Task, error) {
	defer s.read()()
	return s.data.tasks.where(func(r record[task.Task]) bool {
		return projectRows[task.Task](sc)(r) && r.v.ContextID == contextID
	}), nil
}

func (s *Store) UpdateTaskStatus(_ context.Context, sc scope.Scope, id string, status task.Status) error {
	defer s.write()()
	t, ok := s.data.tasks.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return notFound("task", id)
	}
	t.Status, t.UpdatedAt = status, s.timestamp()
	s.data.tasks.put(record[task.Task]{tenant: sc.TenantID, project: sc.ProjectID, id: id, v: t})
	return nil
}

func (s *Store) DeleteTask(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.tasks.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("task", id)
	}
	return nil
}

// --- Ledger ---

func (s *Store) CreateLedgerArtifacts(_ context.Context, sc scope.Scope, artifacts []ledger.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	defer s.write()()
	now := s.timestamp()
	for i := range artifacts {
		a := &artifacts[i]
		ensureID(&a.ID)
		if _, ok := s.data.ledger.get(sc.TenantID, sc.ProjectID, "", a.ID); ok {
			return conflict("ledger artifact", a.ID)
		}
		if a.Parts == nil {
			a.Parts = []ledger.Part{}
		}
		a.TenantID, a.ProjectID, a.CreatedAt = sc.TenantID, sc.ProjectID, now
	}
	for _, a := range artifacts {
		s.data.ledger.put(record[ledger.Artifact]{tenant: sc.TenantID, project: sc.ProjectID, id: a.ID, v: a})
	}
	return nil
}

func (s *Store) ledgerWhere(sc scope.Scope, match func(ledger.Artifact) bool) func(record[ledger.Artifact]) bool {
	in := projectRows[ledger.Artifact](sc)
	return func(r record[ledger.Artifact]) bool { return in(r) && match(r.v) }
}

func (s *Store) ListLedgerArtifactsByContext(_ context.Context, sc scope.Scope, contextID string) ([]ledger.Artifact, error) {
	defer s.read()()
	return s.data.ledger.where(s.ledgerWhere(sc, func(a ledger.Artifact) bool { return a.ContextID == contextID })), nil
}

func (s *Store) ListLedgerArtifactsByTask(_ context.Context, sc scope.Scope, taskID string) ([]ledger.Artifact, error) {
	defer s.read()()
	return s.data.ledger.where(s.ledgerWhere(sc, func(a ledger.Artifact) bool { return a.TaskID == taskID })), nil
}

func (s *Store) DeleteLedgerArtifactsByTask(_ context.Context, sc scope.Scope, taskID string) (int64, error) {
	defer s.write()()
	return s.data.ledger.deleteWhere(s.ledgerWhere(sc, func(a ledger.Artifact) bool { return a.TaskID == taskID })), nil
}

func (s *Store) DeleteLedgerArtifactsByContext(_ context.Context, sc scope.Scope, contextID string) (int64, error) {
	defer s.write()()
	return s.data.ledger.deleteWhere(s.ledgerWhere(sc, func(a ledger.Artifact) bool { return a.ContextID == contextID })), nil
}

// --- Context cache ---

// cacheKey is the table id of an entry: its composite identity.
func cacheKey(k contextcache.Key) string {
	return rowKey(k.ConversationID, k.ContextConfigID, k.ContextVariableKey)
}

func (s *Store) GetContextCacheEntry(_ context.Context, sc scope.Scope, key contextcache.Key) (*contextcache.Entry, error) {
	defer s.read()()
	e, ok := s.data.contextCache.get(sc.TenantID, sc.ProjectID, "", cacheKey(key))
	if !ok {
		return nil, notFound("context cache entry", key.ConversationID+"/"+key.FetchSource())
	}
	return &e, nil
}

func (s *Store) UpsertContextCacheEntry(_ context.Context, sc scope.Scope, e *contextcache.Entry) error {
	defer s.write()()
	now := s.timestamp()
	id := cacheKey(e.Key())
	if old, ok := s.data.contextCache.get(sc.TenantID, sc.ProjectID, "", id); ok {
		e.ID, e.CreatedAt = old.ID, old.CreatedAt
	} else {
		ensureID(&e.ID)
		e.CreatedAt = now
	}
	e.TenantID, e.ProjectID, e.UpdatedAt = sc.TenantID, sc.ProjectID, now
	s.data.contextCache.put(record[contextcache.Entry]{tenant: sc.TenantID, project: sc.ProjectID, id: id, v: *e})
	return nil
}

func (s *Store) deleteCache(sc scope.Scope, match func(contextcache.Entry) bool) int64 {
	in := projectRows[contextcache.Entry](sc)
	return s.data.contextCache.deleteWhere(func(r record[contextcache.Entry]) bool { return in(r) && match(r.v) })
}

func (s *Store) DeleteContextCacheByConversation(_ context.Context, sc scope.Scope, conversationID string) (int64, error) {
	defer s.write()()
	return s.deleteCache(sc, func(e contextcache.Entry) bool { return e.ConversationID == conversationID }), nil
}

func (s *Store) DeleteContextCacheByContextConfig(_ context.Context, sc scope.Scope, contextConfigID string) (int64, error) {
	defer s.write()()
	return s.deleteCache(sc, func(e contextcache.Entry) bool { return e.ContextConfigID == contextConfigID }), nil
}

func (s *Store) DeleteContextCacheByVariableKey(_ context.Context, sc scope.Scope, variableKey string) (int64, error) {
	defer s.write()()
	return s.deleteCache(sc, func(e contextcache.Entry) bool { return e.ContextVariableKey == variableKey }), nil
}

func (s *Store) DeleteContextCacheByTenant(_ context.Context, tenantID string) (int64, error) {
	defer s.write()()
	return s.data.contextCache.deleteWhere(func(r record[contextcache.Entry]) bool { return r.tenant == tenantID }), nil
}
