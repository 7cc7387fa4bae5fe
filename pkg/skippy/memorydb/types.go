// Package memorydb implements the SQLite-backed memory store: a key/value
// record store with global, per-channel and skill scopes, tokenized
// search and deep-merge skill updates.
package memorydb

import (
	"encoding/json"
	"time"
)

// GlobalScope is the sentinel scope identifier for global memory records.
const GlobalScope = "global"

// MemoryRecord is the (scope, key, value, category, tags, created_at,
// updated_at) tuple. Scope is either GlobalScope or
// "channel:<sanitized-name>"; callers use the scoped operations below
// rather than constructing this string themselves.
type MemoryRecord struct {
	Scope     string          `json:"scope"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Category  string          `json:"category"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SkillRecord is the (name, description, instructions, owner, skill_data,
// training_progress, created_at, updated_at) tuple.
// Owner is either OwnerGlobal or a user identifier.
type SkillRecord struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Instructions     string          `json:"instructions"`
	Owner            string          `json:"owner"`
	SkillData        json.RawMessage `json:"skill_data"`
	TrainingProgress json.RawMessage `json:"training_progress"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OwnerGlobal is the sentinel owner value making a skill visible to every
// user, : "visibility is global OR owner == current_user".
const OwnerGlobal = "global"

// VisibleTo reports whether this skill is visible to the given user:
// visibility is global, or owner matches the current user.
func (s SkillRecord) VisibleTo(user string) bool {
	return s.Owner == OwnerGlobal || s.Owner == user
}

// ContextMemoryEntry is one {key, value} pair returned by GetContextMemories.
type ContextMemoryEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ContextSkillEntry is one row returned by GetContextSkills.
type ContextSkillEntry struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Owner        string `json:"owner"`
}

// ErrQueryEmpty is returned by Search when the query has no tokens.
var ErrQueryEmpty = newStoreError("QueryEmpty", "search query must not be empty")

// ErrNotFound is returned when a get/delete targets a missing key.
var ErrNotFound = newStoreError("NotFound", "record not found")

// StoreError carries a short machine-readable kind alongside a message, so
// dispatchers can classify failures by kind without string-matching.
type StoreError struct {
	Kind    string
	Message string
}

func (e *StoreError) Error() string { return e.Message }

func newStoreError(kind, msg string) *StoreError {
	return &StoreError{Kind: kind, Message: msg}
}
