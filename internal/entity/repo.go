package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows list and lookup operations. Empty fields are not applied;
// Limit 0 means unbounded.
type Filter struct {
	OwnerID string
	Subtype string
	Order   Order
	Limit   int
	Offset  int
}

// Repository is the persistence interface for entities. Lookups that find
// no row return (nil, nil) rather than an error; mutations report whether a
// row was touched.
type Repository interface {
	Insert(ctx context.Context, e *Entity) error

	Get(ctx context.Context, id uuid.UUID, typ, ownerID string) (*Entity, error)

	List(ctx context.Context, typ string, f Filter) ([]*Entity, error)

	// MergePayload shallow-merges data over the stored payload of the
	// identified row and stamps updatedAt, returning the merged entity or
	// nil when no row matched.
	MergePayload(ctx context.Context, id uuid.UUID, typ, ownerID string, data map[string]any, updatedAt time.Time) (*Entity, error)

	Delete(ctx context.Context, id uuid.UUID, typ, ownerID string) (bool, error)

	GetBySubtype(ctx context.Context, typ, ownerID, subtype string) (*Entity, error)

	// UpsertBySubtype atomically inserts the (owner, type, subtype) row or
	// shallow-merges data over the existing one. Single conditional write;
	// concurrent callers converge on one row.
	UpsertBySubtype(ctx context.Context, typ, ownerID, subtype string, data map[string]any, now time.Time) (*Entity, error)

	DeleteByTypes(ctx context.Context, ownerID string, types []string) (int64, error)

	// ListByField returns entities of the given type whose payload field
	// equals value, newest first. Used for targeted checks such as "grants
	// issued by this patient to this clinician".
	ListByField(ctx context.Context, typ, ownerID, field, value string, limit int) ([]*Entity, error)
}
