// Package contextcache defines memoized context-variable values. Entries have
// no TTL: they go stale by explicit invalidation or a request hash mismatch.
package contextcache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// Key is the composite identity of a cache entry.
type Key struct {
	ConversationID     string `json:"conversationId" validate:"required"`
	ContextConfigID    string `json:"contextConfigId" validate:"required"`
	ContextVariableKey string `json:"contextVariableKey" validate:"required"`
}

// Validate checks that every key component is present.
func (k Key) Validate() error {
	return domain.ValidateStruct(k)
}

// FetchSource is the "{contextConfigId}:{contextVariableKey}" label stored
// with each entry.
func (k Key) FetchSource() string {
	return k.ContextConfigID + ":" + k.ContextVariableKey
}

// Entry is one cached value.
type Entry struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenantId"`
	ProjectID          string          `json:"projectId"`
	ConversationID     string          `json:"conversationId"`
	ContextConfigID    string          `json:"contextConfigId"`
	ContextVariableKey string          `json:"contextVariableKey"`
	Value              json.RawMessage `json:"value"`
	RequestHash        *string         `json:"requestHash"`
	FetchedAt          string          `json:"fetchedAt"`
	FetchSource        string          `json:"fetchSource"`
	FetchDurationMs    int64           `json:"fetchDurationMs"`
	CreatedAt          string          `json:"createdAt,omitempty"`
	UpdatedAt          string          `json:"updatedAt,omitempty"`
}

// Key returns the composite identity of e.
func (e *Entry) Key() Key {
	return Key{ConversationID: e.ConversationID, ContextConfigID: e.ContextConfigID, ContextVariableKey: e.ContextVariableKey}
}

// Matches reports whether a lookup with requestHash may return e. A nil
// requestHash matches anything; otherwise the stored hash must be equal, and
// a stored null never matches.
func (e *Entry) Matches(requestHash *string) bool {
	if requestHash == nil {
		return true
	}
	return e.RequestHash != nil && *e.RequestHash == *requestHash
}

// Lookup is a getCacheEntry request.
type Lookup struct {
	Key
	RequestHash *string `json:"requestHash,omitempty"`
}

// SetRequest is a setCacheEntry request. FetchDurationMs and RequestHash are
// optional.
type SetRequest struct {
	Key
	Value           json.RawMessage `json:"value"`
	RequestHash     *string         `json:"requestHash,omitempty"`
	FetchDurationMs *int64          `json:"fetchDurationMs,omitempty"`
}

// Fingerprint hashes the inputs that produced a context value into a request
// hash. Map keys are sorted before hashing so equal inputs always agree.
func Fingerprint(inputs map[string]any) (string, error) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		v, err := json.Marshal(inputs[k])
		if err != nil {
			return "", fmt.Errorf("fingerprint %q: %w", k, err)
		}
		// Length-prefix both parts so adjacent fields cannot collide.
		fmt.Fprintf(h, "%d:%s%d:", len(k), k, len(v))
		h.Write(v)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
