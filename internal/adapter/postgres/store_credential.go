package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

const credentialColumns = `id, type, credential_store_id, retrieval_params, created_at, updated_at`

func scanCredential(row scannable) (credential.Reference, error) {
	var c credential.Reference
	var params []byte
	if err := row.Scan(&c.ID, &c.Type, &c.CredentialStoreID, &params, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.RetrievalParams = rawJSON(params)
	return c, nil
}

func (s *Store) GetCredentialReference(ctx context.Context, sc scope.Scope, id string) (*credential.Reference, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credential_references WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	c, err := scanCredential(row)
	if err != nil {
		return nil, notFoundWrap(err, "get credential reference %s", id)
	}
	return &c, nil
}

func (s *Store) ListCredentialReferences(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[credential.Reference], error) {
	var page database.Page[credential.Reference]
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM credential_references WHERE tenant_id = $1 AND project_id = $2`,
		sc.TenantID, sc.ProjectID).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count credential references %s: %w", sc, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+credentialColumns+` FROM credential_references WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY id LIMIT $3 OFFSET $4`,
		sc.TenantID, sc.ProjectID, limitArg(opts), opts.Offset)
	page.Items, err = collect(rows, err, scanCredential, "list credential references")
	return page, err
}

func (s *Store) CreateCredentialReference(ctx context.Context, sc scope.Scope, c *credential.Reference) error {
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO credential_references (tenant_id, project_id, `+credentialColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		sc.TenantID, sc.ProjectID, c.ID, string(c.Type), c.CredentialStoreID, nullJSON(c.RetrievalParams), now)
	if err != nil {
		return writeErr(err, "create credential reference %s", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateCredentialReference(ctx context.Context, sc scope.Scope, c *credential.Reference) error {
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE credential_references SET type = $4, credential_store_id = $5, retrieval_params = $6, updated_at = $7
		 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, c.ID, string(c.Type), c.CredentialStoreID, nullJSON(c.RetrievalParams), now)
	if err := execExpectOne(tag, err, "update credential reference %s", c.ID); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (s *Store) DeleteCredentialReference(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM credential_references WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete credential reference %s", id)
}
