package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// canonicalItem fixes the field order and formats covered by the chain hash.
type canonicalItem struct {
	ID         uint64            `json:"id"`
	Timestamp  string            `json:"ts"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Role       string            `json:"role"`
	ResourceID string            `json:"resource_id"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"request_id"`
	Client     string            `json:"client"`
	PrevHash   string            `json:"prev_hash"`
}

// ComputeHash returns the chain hash of it. The Hash field itself is not covered.
func ComputeHash(it Item) string {
	payload, err := json.Marshal(canonicalItem{
		ID:         it.ID,
		Timestamp:  it.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     string(it.Action),
		Actor:      it.Actor,
		Role:       string(it.Role),
		ResourceID: it.ResourceID,
		Details:    it.Details,
		RequestID:  it.RequestID,
		Client:     it.Client,
		PrevHash:   it.PrevHash,
	})
	if err != nil {
		// map[string]string and plain strings always marshal
		panic(fmt.Sprintf("marshal audit item: %v", err))
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ChainError reports the first item at which the stored chain stops verifying.
type ChainError struct {
	ID     uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at item %d: %s", e.ID, e.Reason)
}
