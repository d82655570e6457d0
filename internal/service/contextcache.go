package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/resilience"
)

var contextCacheAttr = attribute.String("cache", "context")

// ContextCacheService memoizes context-variable values. Get and Set are
// best-effort: store failures and an open breaker behave as a miss.
// Invalidation propagates store errors.
type ContextCacheService struct {
	store   database.ContextCacheStore
	breaker *resilience.Breaker
	metrics *agotel.Metrics
	now     func() time.Time
}

// NewContextCacheService creates a ContextCacheService. breaker may be nil.
func NewContextCacheService(store database.ContextCacheStore, breaker *resilience.Breaker, metrics *agotel.Metrics) *ContextCacheService {
	return &ContextCacheService{store: store, breaker: breaker, metrics: metrics, now: time.Now}
}

func (s *ContextCacheService) guarded(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Execute(fn)
}

// Get returns the entry for the lookup key, or nil. When the lookup carries
// a request hash, an entry stored under a different (or no) hash is a miss.
func (s *ContextCacheService) Get(ctx context.Context, sc scope.Scope, req contextcache.Lookup) *contextcache.Entry {
	if err := s.check(sc, req.Key); err != nil {
		slog.Warn("context cache get rejected", "error", err)
		return nil
	}
	var entry *contextcache.Entry
	err := s.guarded(func() error {
		var err error
		entry, err = s.store.GetContextCacheEntry(ctx, sc, req.Key)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.Add(ctx, agotel.CacheMisses, 1, contextCacheAttr)
		return nil
	case err != nil:
		slog.Warn("context cache get failed", "scope", sc.String(), "fetch_source", req.FetchSource(), "error", err)
		s.metrics.Add(ctx, agotel.CacheErrors, 1, contextCacheAttr)
		return nil
	}
	if !entry.Matches(req.RequestHash) {
		s.metrics.Add(ctx, agotel.CacheMisses, 1, contextCacheAttr, attribute.String("reason", "request_hash"))
		return nil
	}
	s.metrics.Add(ctx, agotel.CacheHits, 1, contextCacheAttr)
	return entry
}

// Set stores a value under the request key, replacing any previous entry.
// It returns the stored entry, or nil when the store could not be written.
func (s *ContextCacheService) Set(ctx context.Context, sc scope.Scope, req contextcache.SetRequest) *contextcache.Entry {
	if err := s.check(sc, req.Key); err != nil {
		slog.Warn("context cache set rejected", "error", err)
		return nil
	}
	entry := &contextcache.Entry{
		TenantID:           sc.TenantID,
		ProjectID:          sc.ProjectID,
		ConversationID:     req.ConversationID,
		ContextConfigID:    req.ContextConfigID,
		ContextVariableKey: req.ContextVariableKey,
		Value:              req.Value,
		RequestHash:        req.RequestHash,
		FetchedAt:          domain.FormatTimestamp(s.now()),
		FetchSource:        req.FetchSource(),
	}
	if req.FetchDurationMs != nil {
		entry.FetchDurationMs = *req.FetchDurationMs
	}
	err := s.guarded(func() error {
		return s.store.UpsertContextCacheEntry(ctx, sc, entry)
	})
	if err != nil {
		slog.Warn("context cache set failed", "scope", sc.String(), "fetch_source", entry.FetchSource, "error", err)
		s.metrics.Add(ctx, agotel.CacheErrors, 1, contextCacheAttr)
		return nil
	}
	return entry
}

func (s *ContextCacheService) check(sc scope.Scope, key contextcache.Key) error {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return err
	}
	return key.Validate()
}

// ClearConversation removes every entry of a conversation and returns how
// many were removed.
func (s *ContextCacheService) ClearConversation(ctx context.Context, sc scope.Scope, conversationID string) (int64, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteContextCacheByConversation(ctx, sc, conversationID)
	if err != nil {
		return 0, fmt.Errorf("clear conversation cache %s: %w", conversationID, err)
	}
	return n, nil
}

// ClearContextConfig removes every entry fetched through a context config.
func (s *ContextCacheService) ClearContextConfig(ctx context.Context, sc scope.Scope, contextConfigID string) (int64, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteContextCacheByContextConfig(ctx, sc, contextConfigID)
	if err != nil {
		return 0, fmt.Errorf("clear context config cache %s: %w", contextConfigID, err)
	}
	return n, nil
}

// CleanupTenant removes every entry of the tenant across all projects.
func (s *ContextCacheService) CleanupTenant(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	n, err := s.store.DeleteContextCacheByTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("cleanup tenant cache %s: %w", tenantID, err)
	}
	return n, nil
}

// InvalidateInvocationDefinitions removes the entries of every listed
// invocation-triggered variable definition, one delete per id, and returns
// the summed count. An empty list does nothing.
func (s *ContextCacheService) InvalidateInvocationDefinitions(ctx context.Context, sc scope.Scope, definitionIDs []string) (int64, error) {
	if len(definitionIDs) == 0 {
		return 0, nil
	}
	if err := sc.Validate(scope.LevelProject); err != nil {
		return 0, err
	}
	var total int64
	for _, id := range definitionIDs {
		n, err := s.store.DeleteContextCacheByVariableKey(ctx, sc, id)
		if err != nil {
			return total, fmt.Errorf("invalidate definition %s: %w", id, err)
		}
		total += n
	}
	return total, nil
}
