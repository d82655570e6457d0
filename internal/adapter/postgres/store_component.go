package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// Data and artifact components share one row shape; the table name is the
// only difference.

type componentRow struct {
	ID, Name, Description string
	Props                 []byte
	CreatedAt, UpdatedAt  string
}

const componentColumns = `id, name, description, props, created_at, updated_at`

func scanComponentRow(row scannable) (componentRow, error) {
	var c componentRow
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Props, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) getComponent(ctx context.Context, table string, sc scope.Scope, id string) (componentRow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+componentColumns+` FROM `+table+` WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	c, err := scanComponentRow(row)
	if err != nil {
		return c, notFoundWrap(err, "get %s %s", table, id)
	}
	return c, nil
}

func (s *Store) listComponents(ctx context.Context, table string, sc scope.Scope, opts database.ListOptions) ([]componentRow, int, error) {
	var total int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM `+table+` WHERE tenant_id = $1 AND project_id = $2`,
		sc.TenantID, sc.ProjectID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s %s: %w", table, sc, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+componentColumns+` FROM `+table+` WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY id LIMIT $3 OFFSET $4`,
		sc.TenantID, sc.ProjectID, limitArg(opts), opts.Offset)
	items, err := collect(rows, err, scanComponentRow, "list "+table)
	return items, total, err
}

func (s *Store) createComponent(ctx context.Context, table string, sc scope.Scope, c *componentRow) error {
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+table+` (tenant_id, project_id, `+componentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		sc.TenantID, sc.ProjectID, c.ID, c.Name, c.Description, nullJSON(c.Props), now)
	if err != nil {
		return writeErr(err, "create %s %s", table, c.ID)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *Store) updateComponent(ctx context.Context, table string, sc scope.Scope, c *componentRow) error {
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE `+table+` SET name = $4, description = $5, props = $6, updated_at = $7
		 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, c.ID, c.Name, c.Description, nullJSON(c.Props), now)
	if err := execExpectOne(tag, err, "update %s %s", table, c.ID); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (s *Store) deleteComponent(ctx context.Context, table string, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM `+table+` WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete %s %s", table, id)
}

// nullJSON keeps an absent raw document as NULL.
func nullJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (c componentRow) data() component.DataComponent {
	return component.DataComponent{ID: c.ID, Name: c.Name, Description: c.Description, Props: rawJSON(c.Props),
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func (c componentRow) artifact() component.ArtifactComponent {
	return component.ArtifactComponent{ID: c.ID, Name: c.Name, Description: c.Description, Props: rawJSON(c.Props),
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// --- Data components ---

func (s *Store) GetDataComponent(ctx context.Context, sc scope.Scope, id string) (*component.DataComponent, error) {
	row, err := s.getComponent(ctx, "data_components", sc, id)
	if err != nil {
		return nil, err
	}
	c := row.data()
	return &c, nil
}

func (s *Store) ListDataComponents(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[component.DataComponent], error) {
	rows, total, err := s.listComponents(ctx, "data_components", sc, opts)
	page := database.Page[component.DataComponent]{Total: total}
	for _, r := range rows {
		page.Items = append(page.Items, r.data())
	}
	return page, err
}

func (s *Store) CreateDataComponent(ctx context.Context, sc scope.Scope, c *component.DataComponent) error {
	row := componentRow{ID: c.ID, Name: c.Name, Description: c.Description, Props: c.Props}
	if err := s.createComponent(ctx, "data_components", sc, &row); err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (s *Store) UpdateDataComponent(ctx context.Context, sc scope.Scope, c *component.DataComponent) error {
	row := componentRow{ID: c.ID, Name: c.Name, Description: c.Description, Props: c.Props}
	if err := s.updateComponent(ctx, "data_components", sc, &row); err != nil {
		return err
	}
	c.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) DeleteDataComponent(ctx context.Context, sc scope.Scope, id string) error {
	return s.deleteComponent(ctx, "data_components", sc, id)
}

// --- Artifact components ---

func (s *Store) GetArtifactComponent(ctx context.Context, sc scope.Scope, id string) (*component.ArtifactComponent, error) {
	row, err := s.getComponent(ctx, "artifact_components", sc, id)
	if err != nil {
		return nil, err
	}
	c := row.artifact()
	return &c, nil
}

func (s *Store) ListArtifactComponents(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[component.ArtifactComponent], error) {
	rows, total, err := s.listComponents(ctx, "artifact_components", sc, opts)
	page := database.Page[component.ArtifactComponent]{Total: total}
	for _, r := range rows {
		page.Items = append(page.Items, r.artifact())
	}
	return page, err
}

func (s *Store) CreateArtifactComponent(ctx context.Context, sc scope.Scope, c *component.ArtifactComponent) error {
	row := componentRow{ID: c.ID, Name: c.Name, Description: c.Description, Props: c.Props}
	if err := s.createComponent(ctx, "artifact_components", sc, &row); err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (s *Store) UpdateArtifactComponent(ctx context.Context, sc scope.Scope, c *component.ArtifactComponent) error {
	row := componentRow{ID: c.ID, Name: c.Name, Description: c.Description, Props: c.Props}
	if err := s.updateComponent(ctx, "artifact_components", sc, &row); err != nil {
		return err
	}
	c.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) DeleteArtifactComponent(ctx context.Context, sc scope.Scope, id string) error {
	return s.deleteComponent(ctx, "artifact_components", sc, id)
}

// --- Component bindings ---

const componentBindingColumns = `id, graph_id, sub_agent_id, component_id, created_at`

func scanComponentBinding(row scannable) (component.Binding, error) {
	var b component.Binding
	err := row.Scan(&b.ID, &b.GraphID, &b.SubAgentID, &b.ComponentID, &b.CreatedAt)
	return b, err
}

func (s *Store) listBindings(ctx context.Context, table string, sc scope.Scope) ([]component.Binding, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+componentBindingColumns+` FROM `+table+`
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 ORDER BY id`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return collect(rows, err, scanComponentBinding, "list "+table)
}

func (s *Store) createBinding(ctx context.Context, table string, sc scope.Scope, b *component.Binding) error {
	ensureID(&b.ID)
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+table+` (tenant_id, project_id, `+componentBindingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sc.TenantID, sc.ProjectID, b.ID, sc.GraphID, b.SubAgentID, b.ComponentID, now)
	if err != nil {
		return writeErr(err, "create %s %s", table, b.ID)
	}
	b.GraphID = sc.GraphID
	b.CreatedAt = now
	return nil
}

func (s *Store) deleteBinding(ctx context.Context, table string, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM `+table+` WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, id)
	return execExpectOne(tag, err, "delete %s %s", table, id)
}

func (s *Store) ListDataBindings(ctx context.Context, sc scope.Scope) ([]component.Binding, error) {
	return s.listBindings(ctx, "sub_agent_data_components", sc)
}

func (s *Store) CreateDataBinding(ctx context.Context, sc scope.Scope, b *component.Binding) error {
	return s.createBinding(ctx, "sub_agent_data_components", sc, b)
}

func (s *Store) DeleteDataBinding(ctx context.Context, sc scope.Scope, id string) error {
	return s.deleteBinding(ctx, "sub_agent_data_components", sc, id)
}

func (s *Store) ListArtifactBindings(ctx context.Context, sc scope.Scope) ([]component.Binding, error) {
	return s.listBindings(ctx, "sub_agent_artifact_components", sc)
}

func (s *Store) CreateArtifactBinding(ctx context.Context, sc scope.Scope, b *component.Binding) error {
	return s.createBinding(ctx, "sub_agent_artifact_components", sc, b)
}

func (s *Store) DeleteArtifactBinding(ctx context.Context, sc scope.Scope, id string) error {
	return s.deleteBinding(ctx, "sub_agent_artifact_components", sc, id)
}
