// Package memory provides an in-memory database.Store. It backs tests and
// single-process runs without PostgreSQL; transactions copy the state on
// begin and swap it in on commit.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/task"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// record is one stored row plus the scope columns it is filtered by.
type record[T any] struct {
	tenant, project, graph, id string
	v                          T
}

type table[T any] map[string]record[T]

func rowKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

func (t table[T]) put(r record[T]) {
	t[rowKey(r.tenant, r.project, r.graph, r.id)] = r
}

func (t table[T]) get(tenant, project, graph, id string) (T, bool) {
	r, ok := t[rowKey(tenant, project, graph, id)]
	return r.v, ok
}

func (t table[T]) del(tenant, project, graph, id string) bool {
	k := rowKey(tenant, project, graph, id)
	_, ok := t[k]
	delete(t, k)
	return ok
}

// where returns the matching rows ordered by id.
func (t table[T]) where(match func(record[T]) bool) []T {
	var recs []record[T]
	for _, r := range t {
		if match(r) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].id < recs[j].id })
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.v)
	}
	return out
}

// deleteWhere removes matching rows and returns how many went.
func (t table[T]) deleteWhere(match func(record[T]) bool) int64 {
	var n int64
	for k, r := range t {
		if match(r) {
			delete(t, k)
			n++
		}
	}
	return n
}

func inProject(sc scope.Scope) func(tenant, project string) bool {
	return func(tenant, project string) bool {
		return tenant == sc.TenantID && project == sc.ProjectID
	}
}

func projectRows[T any](sc scope.Scope) func(record[T]) bool {
	in := inProject(sc)
	return func(r record[T]) bool { return in(r.tenant, r.project) }
}

func graphRows[T any](sc scope.Scope) func(record[T]) bool {
	in := inProject(sc)
	return func(r record[T]) bool { return in(r.tenant, r.project) && r.graph == sc.GraphID }
}

func paginate[T any](items []T, opts database.ListOptions) database.Page[T] {
	page := database.Page[T]{Total: len(items)}
	start := min(max(opts.Offset, 0), len(items))
	end := len(items)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(items))
	}
	page.Items = items[start:end]
	return page
}

type state struct {
	projects           table[project.Project]
	graphs             table[agentgraph.Graph]
	subAgents          table[agentgraph.SubAgent]
	relations          table[agentgraph.Relation]
	externalAgents     table[agentgraph.ExternalAgent]
	tools              table[tool.Tool]
	toolBindings       table[tool.AgentBinding]
	dataComponents     table[component.DataComponent]
	artifactComponents table[component.ArtifactComponent]
	dataBindings       table[component.Binding]
	artifactBindings   table[component.Binding]
	contextConfigs     table[contextconfig.ContextConfig]
	credentials        table[credential.Reference]
	conversations      table[conversation.Conversation]
	messages           table[conversation.Message]
	tasks              table[task.Task]
	ledger             table[ledger.Artifact]
	contextCache       table[contextcache.Entry]
}

func newState() *state {
	return &state{
		projects:           table[project.Project]{},
		graphs:             table[agentgraph.Graph]{},
		subAgents:          table[agentgraph.SubAgent]{},
		relations:          table[agentgraph.Relation]{},
		externalAgents:     table[agentgraph.ExternalAgent]{},
		tools:              table[tool.Tool]{},
		toolBindings:       table[tool.AgentBinding]{},
		dataComponents:     table[component.DataComponent]{},
		artifactComponents: table[component.ArtifactComponent]{},
		dataBindings:       table[component.Binding]{},
		artifactBindings:   table[component.Binding]{},
		contextConfigs:     table[contextconfig.ContextConfig]{},
		credentials:        table[credential.Reference]{},
		conversations:      table[conversation.Conversation]{},
		messages:           table[conversation.Message]{},
		tasks:              table[task.Task]{},
		ledger:             table[ledger.Artifact]{},
		contextCache:       table[contextcache.Entry]{},
	}
}

func (s *state) clone() *state {
	return &state{
		projects:           maps.Clone(s.projects),
		graphs:             maps.Clone(s.graphs),
		subAgents:          maps.Clone(s.subAgents),
		relations:          maps.Clone(s.relations),
		externalAgents:     maps.Clone(s.externalAgents),
		tools:              maps.Clone(s.tools),
		toolBindings:       maps.Clone(s.toolBindings),
		dataComponents:     maps.Clone(s.dataComponents),
		artifactComponents: maps.Clone(s.artifactComponents),
		dataBindings:       maps.Clone(s.dataBindings),
		artifactBindings:   maps.Clone(s.artifactBindings),
		contextConfigs:     maps.Clone(s.contextConfigs),
		credentials:        maps.Clone(s.credentials),
		conversations:      maps.Clone(s.conversations),
		messages:           maps.Clone(s.messages),
		tasks:              maps.Clone(s.tasks),
		ledger:             maps.Clone(s.ledger),
		contextCache:       maps.Clone(s.contextCache),
	}
}

// Store is an in-memory database.Store. Rows are stored by value and
// replaced on update, so a shallow state copy isolates a transaction.
type Store struct {
	mu   *sync.RWMutex
	data *state
	now  func() time.Time
	inTx bool
}

var _ database.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{mu: &sync.RWMutex{}, data: newState(), now: time.Now}
}

// WithClock replaces the time source used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// InTx runs fn against a private copy of the state and publishes it only
// when fn succeeds. Transactions are serialized.
func (s *Store) InTx(ctx context.Context, fn func(tx database.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: &sync.RWMutex{}, data: s.data.clone(), now: s.now, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) read() func() {
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) timestamp() string {
	return domain.FormatTimestamp(s.now())
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.Must(uuid.NewV7()).String()
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

func conflict(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrConflict)
}
