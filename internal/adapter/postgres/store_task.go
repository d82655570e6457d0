package postgres

import (
	"context"

	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/task"
)

const taskColumns = `id, tenant_id, project_id, graph_id, sub_agent_id, context_id, status, metadata, created_at, updated_at`

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	var graphID, subAgentID *string
	var metadata []byte
	err := row.Scan(&t.ID, &t.TenantID, &t.ProjectID, &graphID, &subAgentID, &t.ContextID, &t.Status, &metadata,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.GraphID = deref(graphID)
	t.SubAgentID = deref(subAgentID)
	t.Metadata = rawJSON(metadata)
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, sc scope.Scope, t *task.Task) error {
	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		t.ID, sc.TenantID, sc.ProjectID, nullIfEmpty(t.GraphID), nullIfEmpty(t.SubAgentID), t.ContextID,
		string(t.Status), nullJSON(t.Metadata), now)
	if err != nil {
		return writeErr(err, "create task %s", t.ID)
	}
	t.TenantID, t.ProjectID = sc.TenantID, sc.ProjectID
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

func (s *Store) GetTask(ctx context.Context, sc scope.Scope, id string) (*task.Task, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, sc scope.Scope, contextID string) ([]task.Task, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE tenant_id = $1 AND project_id = $2 AND context_id = $3
		 ORDER BY created_at, id`,
		sc.TenantID, sc.ProjectID, contextID)
	return collect(rows, err, scanTask, "list tasks")
}

func (s *Store) UpdateTaskStatus(ctx context.Context, sc scope.Scope, id string, status task.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = $4, updated_at = $5 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id, string(status), s.timestamp())
	return execExpectOne(tag, err, "update task %s", id)
}

func (s *Store) DeleteTask(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM tasks WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete task %s", id)
}
