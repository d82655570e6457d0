package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/ledger"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// LedgerService records and reads the append-only artifact ledger.
type LedgerService struct {
	store database.LedgerStore
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(store database.LedgerStore) *LedgerService {
	return &LedgerService{store: store}
}

// Append validates and stores artifacts in one batch. An empty batch is a
// no-op.
func (s *LedgerService) Append(ctx context.Context, sc scope.Scope, artifacts []ledger.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	if err := sc.Validate(scope.LevelProject); err != nil {
		return err
	}
	for i := range artifacts {
		if err := domain.ValidateStruct(&artifacts[i]); err != nil {
			return fmt.Errorf("artifact %d: %w", i, err)
		}
	}
	if err := s.store.CreateLedgerArtifacts(ctx, sc, artifacts); err != nil {
		return fmt.Errorf("append ledger artifacts: %w", err)
	}
	return nil
}

// ListByContext returns the artifacts of a context in creation order.
func (s *LedgerService) ListByContext(ctx context.Context, sc scope.Scope, contextID string) ([]ledger.Artifact, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return nil, err
	}
	return s.store.ListLedgerArtifactsByContext(ctx, sc, contextID)
}

// ListByTask returns the artifacts a task produced.
func (s *LedgerService) ListByTask(ctx context.Context, sc scope.Scope, taskID string) ([]ledger.Artifact, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return nil, err
	}
	return s.store.ListLedgerArtifactsByTask(ctx, sc, taskID)
}

// DeleteByTask removes a task's artifacts and returns how many went away.
func (s *LedgerService) DeleteByTask(ctx context.Context, sc scope.Scope, taskID string) (int64, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return 0, err
	}
	return s.store.DeleteLedgerArtifactsByTask(ctx, sc, taskID)
}

// DeleteByContext removes a context's artifacts.
func (s *LedgerService) DeleteByContext(ctx context.Context, sc scope.Scope, contextID string) (int64, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return 0, err
	}
	return s.store.DeleteLedgerArtifactsByContext(ctx, sc, contextID)
}
