// Package credential defines references to secrets held by an external credential store.
package credential

import "encoding/json"

// StoreType names the backing credential store.
type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreKeychain StoreType = "keychain"
	StoreNango    StoreType = "nango"
)

// Reference points at a secret; the secret itself never enters this system.
type Reference struct {
	ID                string          `json:"id" validate:"required"`
	Type              StoreType       `json:"type" validate:"required"`
	CredentialStoreID string          `json:"credentialStoreId" validate:"required"`
	RetrievalParams   json.RawMessage `json:"retrievalParams,omitempty"`
	CreatedAt         string          `json:"createdAt,omitempty"`
	UpdatedAt         string          `json:"updatedAt,omitempty"`
}
