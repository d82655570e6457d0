package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
)

const ledgerColumns = `id, tenant_id, project_id, task_id, context_id, type, name, description, parts, metadata, created_at`

func scanLedgerArtifact(row scannable) (ledger.Artifact, error) {
	var a ledger.Artifact
	var taskID *string
	var parts, metadata []byte
	err := row.Scan(&a.ID, &a.TenantID, &a.ProjectID, &taskID, &a.ContextID, &a.Type, &a.Name, &a.Description,
		&parts, &metadata, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.TaskID = deref(taskID)
	a.Metadata = rawJSON(metadata)
	if err := fromJSONB(parts, &a.Parts); err != nil {
		return a, fmt.Errorf("decode parts: %w", err)
	}
	return a, nil
}

// CreateLedgerArtifacts inserts every artifact in one batch.
func (s *Store) CreateLedgerArtifacts(ctx context.Context, sc scope.Scope, artifacts []ledger.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	now := s.timestamp()
	batch := &pgx.Batch{}
	for i := range artifacts {
		a := &artifacts[i]
		ensureID(&a.ID)
		if a.Parts == nil {
			a.Parts = []ledger.Part{}
		}
		parts, err := toJSONB(a.Parts)
		if err != nil {
			return fmt.Errorf("marshal parts of %s: %w", a.ID, err)
		}
		batch.Queue(`INSERT INTO ledger_artifacts (`+ledgerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.ID, sc.TenantID, sc.ProjectID, nullIfEmpty(a.TaskID), a.ContextID, a.Type, a.Name, a.Description,
			parts, nullJSON(a.Metadata), now)
		a.TenantID, a.ProjectID, a.CreatedAt = sc.TenantID, sc.ProjectID, now
	}
	br := s.db.SendBatch(ctx, batch)
	for i := range artifacts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return writeErr(err, "create ledger artifact %s", artifacts[i].ID)
		}
	}
	return br.Close()
}

func (s *Store) ListLedgerArtifactsByContext(ctx context.Context, sc scope.Scope, contextID string) ([]ledger.Artifact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_artifacts WHERE tenant_id = $1 AND project_id = $2 AND context_id = $3
		 ORDER BY created_at, id`,
		sc.TenantID, sc.ProjectID, contextID)
	return collect(rows, err, scanLedgerArtifact, "list ledger artifacts by context")
}

func (s *Store) ListLedgerArtifactsByTask(ctx context.Context, sc scope.Scope, taskID string) ([]ledger.Artifact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_artifacts WHERE tenant_id = $1 AND project_id = $2 AND task_id = $3
		 ORDER BY created_at, id`,
		sc.TenantID, sc.ProjectID, taskID)
	return collect(rows, err, scanLedgerArtifact, "list ledger artifacts by task")
}

func (s *Store) DeleteLedgerArtifactsByTask(ctx context.Context, sc scope.Scope, taskID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM ledger_artifacts WHERE tenant_id = $1 AND project_id = $2 AND task_id = $3`,
		sc.TenantID, sc.ProjectID, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger artifacts of task %s: %w", taskID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteLedgerArtifactsByContext(ctx context.Context, sc scope.Scope, contextID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM ledger_artifacts WHERE tenant_id = $1 AND project_id = $2 AND context_id = $3`,
		sc.TenantID, sc.ProjectID, contextID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger artifacts of context %s: %w", contextID, err)
	}
	return tag.RowsAffected(), nil
}
