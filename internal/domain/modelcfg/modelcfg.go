// Package modelcfg holds the model selection and stop-condition settings that
// projects, graphs and sub-agents share.
package modelcfg

import "encoding/json"

// Settings names one model and its provider options.
type Settings struct {
	Model           string          `json:"model,omitempty" yaml:"model,omitempty"`
	ProviderOptions json.RawMessage `json:"providerOptions,omitempty" yaml:"providerOptions,omitempty"`
}

// Models groups the model roles an agent can use.
type Models struct {
	Base             *Settings `json:"base,omitempty"`
	StructuredOutput *Settings `json:"structuredOutput,omitempty"`
	Summarizer       *Settings `json:"summarizer,omitempty"`
}

// IsZero reports whether no role is configured.
func (m *Models) IsZero() bool {
	return m == nil || (m.Base == nil && m.StructuredOutput == nil && m.Summarizer == nil)
}

// Inherit composes override over fallback per role: a role set on override
// wins, otherwise the fallback role is used. Returns nil when both are empty.
func Inherit(override, fallback *Models) *Models {
	if override.IsZero() && fallback.IsZero() {
		return nil
	}
	if fallback.IsZero() {
		return override
	}
	if override.IsZero() {
		return fallback
	}
	out := *fallback
	if override.Base != nil {
		out.Base = override.Base
	}
	if override.StructuredOutput != nil {
		out.StructuredOutput = override.StructuredOutput
	}
	if override.Summarizer != nil {
		out.Summarizer = override.Summarizer
	}
	return &out
}

// StopWhen bounds how long an agent loop may run.
type StopWhen struct {
	TransferCountIs *int `json:"transferCountIs,omitempty"`
	StepCountIs     *int `json:"stepCountIs,omitempty"`
}
