package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
)

const contextCacheColumns = `id, tenant_id, project_id, conversation_id, context_config_id, context_variable_key,
	value, request_hash, fetched_at, fetch_source, fetch_duration_ms, created_at, updated_at`

func scanContextCacheEntry(row scannable) (contextcache.Entry, error) {
	var e contextcache.Entry
	var value []byte
	err := row.Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.ConversationID, &e.ContextConfigID, &e.ContextVariableKey,
		&value, &e.RequestHash, &e.FetchedAt, &e.FetchSource, &e.FetchDurationMs, &e.CreatedAt, &e.UpdatedAt)
	e.Value = rawJSON(value)
	return e, err
}

func (s *Store) GetContextCacheEntry(ctx context.Context, sc scope.Scope, key contextcache.Key) (*contextcache.Entry, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+contextCacheColumns+` FROM context_cache
		 WHERE tenant_id = $1 AND project_id = $2 AND conversation_id = $3 AND context_config_id = $4
		   AND context_variable_key = $5`,
		sc.TenantID, sc.ProjectID, key.ConversationID, key.ContextConfigID, key.ContextVariableKey)
	e, err := scanContextCacheEntry(row)
	if err != nil {
		return nil, notFoundWrap(err, "get context cache %s/%s", key.ConversationID, key.FetchSource())
	}
	return &e, nil
}

// UpsertContextCacheEntry writes e, replacing the entry with the same
// composite key. The replaced row keeps its id and created_at.
func (s *Store) UpsertContextCacheEntry(ctx context.Context, sc scope.Scope, e *contextcache.Entry) error {
	ensureID(&e.ID)
	value := nullJSON(e.Value)
	if value == nil {
		value = []byte("null")
	}
	now := s.timestamp()
	row := s.db.QueryRow(ctx,
		`INSERT INTO context_cache (`+contextCacheColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (tenant_id, project_id, conversation_id, context_config_id, context_variable_key)
		 DO UPDATE SET value = EXCLUDED.value, request_hash = EXCLUDED.request_hash,
		   fetched_at = EXCLUDED.fetched_at, fetch_source = EXCLUDED.fetch_source,
		   fetch_duration_ms = EXCLUDED.fetch_duration_ms, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		e.ID, sc.TenantID, sc.ProjectID, e.ConversationID, e.ContextConfigID, e.ContextVariableKey,
		value, e.RequestHash, e.FetchedAt, e.FetchSource, e.FetchDurationMs, now)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return writeErr(err, "upsert context cache %s/%s", e.ConversationID, e.FetchSource)
	}
	e.TenantID, e.ProjectID, e.UpdatedAt = sc.TenantID, sc.ProjectID, now
	return nil
}

func (s *Store) deleteContextCache(ctx context.Context, op, where string, args ...any) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM context_cache WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteContextCacheByConversation(ctx context.Context, sc scope.Scope, conversationID string) (int64, error) {
	return s.deleteContextCache(ctx, "clear context cache of conversation "+conversationID,
		`tenant_id = $1 AND project_id = $2 AND conversation_id = $3`,
		sc.TenantID, sc.ProjectID, conversationID)
}

func (s *Store) DeleteContextCacheByContextConfig(ctx context.Context, sc scope.Scope, contextConfigID string) (int64, error) {
	return s.deleteContextCache(ctx, "clear context cache of config "+contextConfigID,
		`tenant_id = $1 AND project_id = $2 AND context_config_id = $3`,
		sc.TenantID, sc.ProjectID, contextConfigID)
}

func (s *Store) DeleteContextCacheByVariableKey(ctx context.Context, sc scope.Scope, variableKey string) (int64, error) {
	return s.deleteContextCache(ctx, "clear context cache of variable "+variableKey,
		`tenant_id = $1 AND project_id = $2 AND context_variable_key = $3`,
		sc.TenantID, sc.ProjectID, variableKey)
}

func (s *Store) DeleteContextCacheByTenant(ctx context.Context, tenantID string) (int64, error) {
	return s.deleteContextCache(ctx, "clear context cache of tenant "+tenantID, `tenant_id = $1`, tenantID)
}
