package agentgraph

import (
	"github.com/a2aproject/a2a-go/a2a"
)

// ExternalAgent is a remote agent referenced by relations instead of a sub-agent.
type ExternalAgent struct {
	ID                    string            `json:"id"`
	GraphID               string            `json:"graphId,omitempty"`
	Name                  string            `json:"name" validate:"required"`
	Description           string            `json:"description,omitempty"`
	BaseURL               string            `json:"baseUrl" validate:"required,url"`
	CredentialReferenceID string            `json:"credentialReferenceId,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	CreatedAt             string            `json:"createdAt,omitempty"`
	UpdatedAt             string            `json:"updatedAt,omitempty"`
}

// AgentCard projects the external agent into the A2A card shape runtimes use
// to address it.
func (e *ExternalAgent) AgentCard() a2a.AgentCard {
	return a2a.AgentCard{
		Name:               e.Name,
		Description:        e.Description,
		URL:                e.BaseURL,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}
