package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestProjectLifecycle(t *testing.T) {
	s := NewStore().WithClock(fixedClock())
	ctx := context.Background()
	sc := scope.Project("t1", "p1")

	p := &project.Project{ID: "p1", TenantID: "t1", Name: "one"}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.CreatedAt != "2025-03-01T12:00:00.000Z" {
		t.Fatalf("created_at = %q", p.CreatedAt)
	}
	if err := s.CreateProject(ctx, &project.Project{ID: "p1", TenantID: "t1"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate: want ErrConflict, got %v", err)
	}
	if _, err := s.GetProject(ctx, scope.Project("other", "p1")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other tenant: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteProject(ctx, sc); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteProject(ctx, sc); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sc := scope.Graph("t1", "p1", "g1")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx database.Store) error {
		if err := tx.CreateGraph(ctx, sc, &agentgraph.Graph{ID: "g1", Name: "G"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if _, err := s.GetGraph(ctx, sc); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("graph leaked out of rolled back tx: %v", err)
	}

	err = s.InTx(ctx, func(tx database.Store) error {
		return tx.CreateGraph(ctx, sc, &agentgraph.Graph{ID: "g1", Name: "G"})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.GetGraph(ctx, sc); err != nil {
		t.Fatalf("graph missing after commit: %v", err)
	}
}

func TestRelationsListInCreationOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sc := scope.Graph("t1", "p1", "g1")

	targets := []string{"c", "a", "b"}
	for _, target := range targets {
		r := &agentgraph.Relation{SourceSubAgentID: "src", Type: agentgraph.RelationTransfer, Target: agentgraph.InternalTarget{SubAgentID: target}}
		if err := s.CreateRelation(ctx, sc, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := s.ListRelations(ctx, sc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, r := range got {
		if r.Target.TargetID() != targets[i] {
			t.Fatalf("relation %d targets %s, want %s", i, r.Target.TargetID(), targets[i])
		}
	}

	bad := &agentgraph.Relation{SourceSubAgentID: "src", Type: agentgraph.RelationTransfer}
	if err := s.CreateRelation(ctx, sc, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("relation without target: want ErrValidation, got %v", err)
	}
}

func TestToolBindingUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sc := scope.Graph("t1", "p1", "g1")

	if err := s.CreateToolBinding(ctx, sc, &tool.AgentBinding{SubAgentID: "a1", ToolID: "t1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateToolBinding(ctx, sc, &tool.AgentBinding{SubAgentID: "a1", ToolID: "t1"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate: want ErrConflict, got %v", err)
	}
	if err := s.CreateToolBinding(ctx, sc.WithGraph("g2"), &tool.AgentBinding{SubAgentID: "a1", ToolID: "t1"}); err != nil {
		t.Fatalf("same pair in another graph: %v", err)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		name string
		opts database.ListOptions
		want []int
	}{
		{"all", database.ListOptions{}, []int{1, 2, 3, 4, 5}},
		{"first page", database.ListOptions{Limit: 2}, []int{1, 2}},
		{"middle", database.ListOptions{Limit: 2, Offset: 2}, []int{3, 4}},
		{"past end", database.ListOptions{Limit: 2, Offset: 9}, []int{}},
		{"negative offset", database.ListOptions{Offset: -1}, []int{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := paginate(items, tt.opts)
			if page.Total != 5 {
				t.Fatalf("total = %d", page.Total)
			}
			if len(page.Items) != len(tt.want) {
				t.Fatalf("items = %v, want %v", page.Items, tt.want)
			}
			for i := range tt.want {
				if page.Items[i] != tt.want[i] {
					t.Fatalf("items = %v, want %v", page.Items, tt.want)
				}
			}
		})
	}
}

func TestContextCacheUpsertAndScopedDeletes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sc := scope.Project("t1", "p1")
	put := func(conv, cfg, key string) *contextcache.Entry {
		t.Helper()
		e := &contextcache.Entry{ConversationID: conv, ContextConfigID: cfg, ContextVariableKey: key, Value: []byte(`1`)}
		if err := s.UpsertContextCacheEntry(ctx, sc, e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		return e
	}

	first := put("c1", "cfg", "user")
	again := put("c1", "cfg", "user")
	if again.ID != first.ID {
		t.Fatalf("upsert replaced id %s with %s", first.ID, again.ID)
	}
	put("c2", "cfg", "user")
	put("c2", "other", "org")

	if n, _ := s.DeleteContextCacheByConversation(ctx, sc, "c1"); n != 1 {
		t.Fatalf("by conversation removed %d", n)
	}
	if n, _ := s.DeleteContextCacheByContextConfig(ctx, sc, "cfg"); n != 1 {
		t.Fatalf("by config removed %d", n)
	}
	if n, _ := s.DeleteContextCacheByVariableKey(ctx, sc, "missing"); n != 0 {
		t.Fatalf("by unknown key removed %d", n)
	}
	if n, _ := s.DeleteContextCacheByTenant(ctx, "t1"); n != 1 {
		t.Fatalf("by tenant removed %d", n)
	}
}

func TestLedgerAndMessages(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sc := scope.Project("t1", "p1")

	arts := []ledger.Artifact{
		{ContextID: "ctx", TaskID: "task1", Type: "source"},
		{ContextID: "ctx", TaskID: "task2", Type: "source"},
	}
	if err := s.CreateLedgerArtifacts(ctx, sc, arts); err != nil {
		t.Fatalf("create artifacts: %v", err)
	}
	if arts[0].ID == "" || arts[0].Parts == nil {
		t.Fatalf("artifact not completed: %+v", arts[0])
	}
	if n, _ := s.DeleteLedgerArtifactsByTask(ctx, sc, "task1"); n != 1 {
		t.Fatalf("by task removed %d", n)
	}
	left, _ := s.ListLedgerArtifactsByContext(ctx, sc, "ctx")
	if len(left) != 1 || left[0].TaskID != "task2" {
		t.Fatalf("left = %+v", left)
	}

	conv := &conversation.Conversation{Title: "chat"}
	if err := s.CreateConversation(ctx, sc, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := s.CreateMessage(ctx, sc, &conversation.Message{ConversationID: conv.ID, Role: "user", Content: []byte(`"hi"`)}); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if err := s.CreateMessage(ctx, sc, &conversation.Message{ConversationID: "nope", Role: "user"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("message to unknown conversation: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteConversation(ctx, sc, conv.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	page, _ := s.ListMessages(ctx, sc, conv.ID, database.ListOptions{})
	if page.Total != 0 {
		t.Fatalf("messages survived conversation delete: %d", page.Total)
	}
}
