package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/agentgraph/internal/adapter/memory"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/resilience"
)

var cacheScope = scope.Project(testTenant, "p1")

func cacheKeyFor(variable string) contextcache.Key {
	return contextcache.Key{ConversationID: "conv-1", ContextConfigID: "ctx-1", ContextVariableKey: variable}
}

func newCacheService() (*ContextCacheService, *memory.Store) {
	st := memory.NewStore()
	svc := NewContextCacheService(st, nil, nil)
	svc.now = newClock().now
	return svc, st
}

func strPtr(s string) *string { return &s }

func TestContextCacheRequestHash(t *testing.T) {
	svc, _ := newCacheService()
	ctx := context.Background()
	key := cacheKeyFor("customer")

	if e := svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key, Value: json.RawMessage(`{"tier":"gold"}`), RequestHash: strPtr("h1")}); e == nil {
		t.Fatal("set returned nil")
	}

	tests := []struct {
		name    string
		hash    *string
		wantHit bool
	}{
		{"same hash", strPtr("h1"), true},
		{"different hash", strPtr("h2"), false},
		{"no hash", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key, RequestHash: tt.hash})
			if (got != nil) != tt.wantHit {
				t.Fatalf("hit = %v, want %v", got != nil, tt.wantHit)
			}
			if got != nil && string(got.Value) != `{"tier":"gold"}` {
				t.Errorf("value = %s", got.Value)
			}
		})
	}
}

func TestContextCacheStoredNullHashNeverMatches(t *testing.T) {
	svc, _ := newCacheService()
	ctx := context.Background()
	key := cacheKeyFor("customer")
	svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key, Value: json.RawMessage(`1`)})

	if got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key, RequestHash: strPtr("h1")}); got != nil {
		t.Fatalf("entry without a hash must not satisfy a hashed lookup: %+v", got)
	}
}

func TestContextCacheSetDefaults(t *testing.T) {
	svc, _ := newCacheService()
	got := svc.Set(context.Background(), cacheScope, contextcache.SetRequest{Key: cacheKeyFor("customer"), Value: json.RawMessage(`"x"`)})
	if got == nil {
		t.Fatal("set returned nil")
	}
	if got.FetchSource != "ctx-1:customer" {
		t.Errorf("fetchSource = %q", got.FetchSource)
	}
	if got.FetchDurationMs != 0 || got.RequestHash != nil {
		t.Errorf("defaults = %d %v", got.FetchDurationMs, got.RequestHash)
	}
	if got.FetchedAt != "2025-03-01T12:00:00.000Z" {
		t.Errorf("fetchedAt = %q", got.FetchedAt)
	}
	if got.TenantID != testTenant || got.ProjectID != "p1" {
		t.Errorf("scope columns = %q %q", got.TenantID, got.ProjectID)
	}
}

func TestContextCacheSetReplaces(t *testing.T) {
	svc, _ := newCacheService()
	ctx := context.Background()
	key := cacheKeyFor("customer")
	ms := int64(42)
	svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key, Value: json.RawMessage(`1`)})
	svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key, Value: json.RawMessage(`2`), FetchDurationMs: &ms})

	got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key})
	if got == nil || string(got.Value) != "2" || got.FetchDurationMs != 42 {
		t.Fatalf("got %+v", got)
	}
}

func TestContextCacheRejectsIncompleteKey(t *testing.T) {
	svc := NewContextCacheService(nilStore{}, nil, nil)
	ctx := context.Background()
	key := contextcache.Key{ConversationID: "conv-1"}
	if got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key}); got != nil {
		t.Errorf("get = %+v", got)
	}
	if got := svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key}); got != nil {
		t.Errorf("set = %+v", got)
	}
}

// brokenCache fails every context cache call.
type brokenCache struct {
	database.ContextCacheStore
	calls int
}

var errDown = errors.New("database down")

func (b *brokenCache) GetContextCacheEntry(context.Context, scope.Scope, contextcache.Key) (*contextcache.Entry, error) {
	b.calls++
	return nil, errDown
}

func (b *brokenCache) UpsertContextCacheEntry(context.Context, scope.Scope, *contextcache.Entry) error {
	b.calls++
	return errDown
}

func TestContextCacheSwallowsStoreErrors(t *testing.T) {
	store := &brokenCache{}
	svc := NewContextCacheService(store, nil, nil)
	ctx := context.Background()
	key := cacheKeyFor("customer")

	if got := svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key, Value: json.RawMessage(`1`)}); got != nil {
		t.Errorf("set = %+v, want nil", got)
	}
	if got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key}); got != nil {
		t.Errorf("get = %+v, want nil", got)
	}
	if store.calls != 2 {
		t.Errorf("calls = %d, want 2", store.calls)
	}
}

func TestContextCacheOpenBreakerIsAMiss(t *testing.T) {
	store := &brokenCache{}
	svc := NewContextCacheService(store, resilience.NewBreaker(1, time.Hour), nil)
	ctx := context.Background()
	key := cacheKeyFor("customer")

	svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key})
	if store.calls != 1 {
		t.Fatalf("calls = %d, want 1", store.calls)
	}
	// The breaker is open now: further calls never reach the store.
	if got := svc.Get(ctx, cacheScope, contextcache.Lookup{Key: key}); got != nil {
		t.Errorf("get = %+v", got)
	}
	if got := svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: key}); got != nil {
		t.Errorf("set = %+v", got)
	}
	if store.calls != 1 {
		t.Errorf("calls = %d, want 1 while open", store.calls)
	}
}

func TestContextCacheClear(t *testing.T) {
	svc, _ := newCacheService()
	ctx := context.Background()
	for _, k := range []contextcache.Key{
		{ConversationID: "conv-1", ContextConfigID: "ctx-1", ContextVariableKey: "a"},
		{ConversationID: "conv-1", ContextConfigID: "ctx-2", ContextVariableKey: "b"},
		{ConversationID: "conv-2", ContextConfigID: "ctx-1", ContextVariableKey: "a"},
	} {
		if svc.Set(ctx, cacheScope, contextcache.SetRequest{Key: k, Value: json.RawMessage(`1`)}) == nil {
			t.Fatal("set failed")
		}
	}
	other := scope.Project("tenant-2", "p1")
	svc.Set(ctx, other, contextcache.SetRequest{Key: cacheKeyFor("a"), Value: json.RawMessage(`1`)})

	n, err := svc.ClearContextConfig(ctx, cacheScope, "ctx-1")
	if err != nil || n != 2 {
		t.Fatalf("clear context config = %d, %v; want 2", n, err)
	}
	n, err = svc.ClearConversation(ctx, cacheScope, "conv-1")
	if err != nil || n != 1 {
		t.Fatalf("clear conversation = %d, %v; want 1", n, err)
	}
	n, err = svc.CleanupTenant(ctx, "tenant-2")
	if err != nil || n != 1 {
		t.Fatalf("cleanup tenant = %d, %v; want 1", n, err)
	}
	if _, err := svc.CleanupTenant(ctx, ""); err == nil {
		t.Error("expected an error for an empty tenant")
	}
}

// countingCache reports a fixed number of deletions per variable key.
type countingCache struct {
	database.ContextCacheStore
	deleted map[string]int64
	calls   []string
}

func (c *countingCache) DeleteContextCacheByVariableKey(_ context.Context, _ scope.Scope, key string) (int64, error) {
	c.calls = append(c.calls, key)
	return c.deleted[key], nil
}

func TestInvalidateInvocationDefinitions(t *testing.T) {
	store := &countingCache{deleted: map[string]int64{"d1": 2, "d2": 0, "d3": 5}}
	svc := NewContextCacheService(store, nil, nil)

	n, err := svc.InvalidateInvocationDefinitions(context.Background(), cacheScope, []string{"d1", "d2", "d3"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("removed = %d, want 7", n)
	}
	if len(store.calls) != 3 {
		t.Errorf("calls = %v, want one per id", store.calls)
	}
}

func TestInvalidateInvocationDefinitionsEmpty(t *testing.T) {
	// Any store call would dereference the nil embedded interface.
	svc := NewContextCacheService(&countingCache{}, nil, nil)
	n, err := svc.InvalidateInvocationDefinitions(context.Background(), scope.Scope{}, nil)
	if err != nil || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}
}
