// Package contextconfig defines per-graph context configuration: the request
// context schema and the context variables fetched from external sources.
package contextconfig

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// Trigger decides when a context variable is (re)fetched.
type Trigger string

const (
	TriggerInitialization Trigger = "initialization"
	TriggerInvocation     Trigger = "invocation"
)

// FetchConfig describes the HTTP call that produces a variable value.
type FetchConfig struct {
	URL                   string            `json:"url" validate:"required"`
	Method                string            `json:"method,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	Body                  json.RawMessage   `json:"body,omitempty"`
	Transform             string            `json:"transform,omitempty"`
	TimeoutMs             int               `json:"timeoutMs,omitempty"`
	CredentialReferenceID string            `json:"credentialReferenceId,omitempty"`
}

// Variable is one fetchable context value.
type Variable struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Trigger        Trigger         `json:"trigger" validate:"required,oneof=initialization invocation"`
	FetchConfig    FetchConfig     `json:"fetchConfig"`
	ResponseSchema json.RawMessage `json:"responseSchema,omitempty"`
	DefaultValue   json.RawMessage `json:"defaultValue,omitempty"`
}

// ContextConfig is attached to at most one graph.
type ContextConfig struct {
	ID                   string              `json:"id" validate:"required"`
	GraphID              string              `json:"graphId,omitempty"`
	Name                 string              `json:"name,omitempty"`
	Description          string              `json:"description,omitempty"`
	RequestContextSchema json.RawMessage     `json:"requestContextSchema,omitempty"`
	ContextVariables     map[string]Variable `json:"contextVariables"`
	CreatedAt            string              `json:"createdAt,omitempty"`
	UpdatedAt            string              `json:"updatedAt,omitempty"`
}

// Normalize folds an empty variable map to nil so it is stored as NULL.
func (c *ContextConfig) Normalize() {
	if len(c.ContextVariables) == 0 {
		c.ContextVariables = nil
	}
}

// Validate checks trigger values and fills variable ids from their keys.
func (c *ContextConfig) Validate() error {
	for key, v := range c.ContextVariables {
		if v.Trigger != TriggerInitialization && v.Trigger != TriggerInvocation {
			return fmt.Errorf("%w: context variable %q has invalid trigger %q", domain.ErrValidation, key, v.Trigger)
		}
		if v.FetchConfig.URL == "" {
			return fmt.Errorf("%w: context variable %q has no fetch url", domain.ErrValidation, key)
		}
		if v.ID == "" {
			v.ID = key
			c.ContextVariables[key] = v
		}
	}
	return nil
}
