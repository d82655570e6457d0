package agentgraph

import (
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// RelationType distinguishes control hand-off from sub-task dispatch.
type RelationType string

const (
	// RelationTransfer hands the conversation to the target.
	RelationTransfer RelationType = "transfer"
	// RelationDelegate dispatches a sub-task and waits for the result.
	RelationDelegate RelationType = "delegate"
)

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	return t == RelationTransfer || t == RelationDelegate
}

// Target is the closed set of relation endpoints: InternalTarget or ExternalTarget.
type Target interface {
	TargetID() string
	isTarget()
}

// InternalTarget points at a sub-agent of the same graph.
type InternalTarget struct {
	SubAgentID string
}

// TargetID returns the sub-agent id.
func (t InternalTarget) TargetID() string { return t.SubAgentID }
func (InternalTarget) isTarget()          {}

// ExternalTarget points at a remote agent reachable over HTTP.
type ExternalTarget struct {
	ExternalAgentID string
}

// TargetID returns the external agent id.
func (t ExternalTarget) TargetID() string { return t.ExternalAgentID }
func (ExternalTarget) isTarget()          {}

// TargetFromColumns builds a Target from the two nullable storage columns.
// Exactly one must be set.
func TargetFromColumns(targetSubAgentID, externalAgentID string) (Target, error) {
	switch {
	case targetSubAgentID != "" && externalAgentID != "":
		return nil, fmt.Errorf("%w: relation has both target and external agent", domain.ErrValidation)
	case targetSubAgentID != "":
		return InternalTarget{SubAgentID: targetSubAgentID}, nil
	case externalAgentID != "":
		return ExternalTarget{ExternalAgentID: externalAgentID}, nil
	default:
		return nil, fmt.Errorf("%w: relation has neither target nor external agent", domain.ErrValidation)
	}
}

// Kind is the four-way classification of a relation.
type Kind int

const (
	KindInternalTransfer Kind = iota + 1
	KindInternalDelegate
	KindExternalTransfer
	KindExternalDelegate
)

func (k Kind) String() string {
	switch k {
	case KindInternalTransfer:
		return "internal-transfer"
	case KindInternalDelegate:
		return "internal-delegate"
	case KindExternalTransfer:
		return "external-transfer"
	case KindExternalDelegate:
		return "external-delegate"
	}
	return "unknown"
}

// Relation is a directed edge between a sub-agent and its target.
type Relation struct {
	ID               string       `json:"id"`
	GraphID          string       `json:"graphId"`
	SourceSubAgentID string       `json:"sourceSubAgentId"`
	Target           Target       `json:"-"`
	Type             RelationType `json:"relationType"`
	CreatedAt        string       `json:"createdAt,omitempty"`
	UpdatedAt        string       `json:"updatedAt,omitempty"`
}

// Validate checks the relation type and that a target is present.
func (r *Relation) Validate() error {
	if r.SourceSubAgentID == "" {
		return fmt.Errorf("%w: relation source is required", domain.ErrValidation)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: invalid relation type %q", domain.ErrValidation, r.Type)
	}
	if r.Target == nil || r.Target.TargetID() == "" {
		return fmt.Errorf("%w: relation target is required", domain.ErrValidation)
	}
	return nil
}

// Columns splits the target into the two storage columns.
func (r *Relation) Columns() (targetSubAgentID, externalAgentID string) {
	switch t := r.Target.(type) {
	case InternalTarget:
		return t.SubAgentID, ""
	case ExternalTarget:
		return "", t.ExternalAgentID
	}
	return "", ""
}

// Kind classifies the relation.
func (r *Relation) Kind() Kind {
	_, external := r.Target.(ExternalTarget)
	switch {
	case !external && r.Type == RelationTransfer:
		return KindInternalTransfer
	case !external && r.Type == RelationDelegate:
		return KindInternalDelegate
	case external && r.Type == RelationTransfer:
		return KindExternalTransfer
	default:
		return KindExternalDelegate
	}
}

// RelationKey is the natural identity of a relation, used to diff stored
// relations against an incoming definition.
type RelationKey struct {
	Source   string
	TargetID string
	External bool
	Type     RelationType
}

// Key returns the natural identity of r.
func (r *Relation) Key() RelationKey {
	_, external := r.Target.(ExternalTarget)
	return RelationKey{Source: r.SourceSubAgentID, TargetID: r.Target.TargetID(), External: external, Type: r.Type}
}
