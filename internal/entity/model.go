// Package entity implements the generic schemaless record store backing
// appointments, notifications, consents, reviews and the other per-user
// collections that do not warrant their own tables. Records are tagged by
// (owner, type, subtype) and carry an opaque JSON payload; typed decoding
// happens in the domain packages, never here.
package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order selects creation-time ordering for list operations.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Entity is the universal record shape stored in the entities table.
type Entity struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	OwnerID   *string        `db:"owner_id" json:"owner_id,omitempty"`
	Type      string         `db:"type" json:"type"`
	Subtype   *string        `db:"subtype" json:"subtype,omitempty"`
	Payload   map[string]any `db:"data" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Decode unmarshals the payload into a typed struct. Domain packages call
// this immediately after reads so that schemaless maps stop at the storage
// edge.
func (e *Entity) Decode(v any) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Owner returns the owner id or "" for global records.
func (e *Entity) Owner() string {
	if e.OwnerID == nil {
		return ""
	}
	return *e.OwnerID
}

// SubtypeTag returns the subtype or "" when unset.
func (e *Entity) SubtypeTag() string {
	if e.Subtype == nil {
		return ""
	}
	return *e.Subtype
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
