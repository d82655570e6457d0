// Package service implements business logic on top of ports: graph and
// project materialization, the resource-integrity guard, the context cache
// and the artifact ledger.
package service

import (
	"context"
	"log/slog"
	"time"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
)

// repairer normalizes stored timestamps on read. Unparseable values are
// replaced by now, logged and counted.
type repairer struct {
	metrics *agotel.Metrics
	now     func() time.Time
}

func (r repairer) fix(ctx context.Context, kind, id string, fields ...*string) {
	for _, f := range fields {
		out, repaired := domain.NormalizeTimestamp(*f, r.now())
		if repaired {
			slog.Warn("repaired unparseable timestamp", "kind", kind, "id", id, "value", *f, "replacement", out)
			r.metrics.Add(ctx, agotel.TimestampRepairs, 1)
		}
		*f = out
	}
}

// change pairs a stored row with its incoming replacement.
type change[T any] struct {
	old, new T
}

// diff compares stored rows against incoming rows by natural key:
// incoming minus stored is created, stored minus incoming is removed and
// the intersection is returned for patching. Stored duplicates of a key are
// removed; incoming duplicates collapse onto the first occurrence.
func diff[K comparable, T any](existing, incoming []T, key func(*T) K) (create []T, update []change[T], remove []T) {
	wanted := make(map[K]int, len(incoming))
	for i := range incoming {
		if _, ok := wanted[key(&incoming[i])]; !ok {
			wanted[key(&incoming[i])] = i
		}
	}
	matched := make(map[K]bool, len(existing))
	for i := range existing {
		k := key(&existing[i])
		j, ok := wanted[k]
		if !ok || matched[k] {
			remove = append(remove, existing[i])
			continue
		}
		matched[k] = true
		update = append(update, change[T]{old: existing[i], new: incoming[j]})
	}
	for i := range incoming {
		k := key(&incoming[i])
		if wanted[k] == i && !matched[k] {
			create = append(create, incoming[i])
		}
	}
	return create, update, remove
}
