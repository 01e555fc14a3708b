package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the service-level API over a Repository. It owns id generation,
// timestamp stamping and the shallow-merge update contract; everything else
// is delegated.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore wraps a Repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// SetClock overrides the store's clock. Tests use this to pin time.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// sanitize copies data without the reserved "id" key, which callers must
// never be able to overwrite.
func sanitize(data map[string]any) map[string]any {
	out := copyPayload(data)
	delete(out, "id")
	return out
}

// createdAtFrom honors an explicit createdAt supplied by the caller (RFC3339
// string or time.Time), used by import flows; everything else gets now.
func (s *Store) createdAtFrom(data map[string]any) time.Time {
	switch v := data["createdAt"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return s.now()
}

func (s *Store) Create(ctx context.Context, typ, ownerID, subtype string, data map[string]any) (*Entity, error) {
	if typ == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	e := &Entity{
		ID:        uuid.New(),
		OwnerID:   strPtr(ownerID),
		Type:      typ,
		Subtype:   strPtr(subtype),
		Payload:   sanitize(data),
		CreatedAt: s.createdAtFrom(data),
		UpdatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("create %s entity: %w", typ, err)
	}
	return e, nil
}

// Get returns the entity or nil when no row matches; missing records are not
// an error.
func (s *Store) Get(ctx context.Context, id uuid.UUID, typ, ownerID string) (*Entity, error) {
	return s.repo.Get(ctx, id, typ, ownerID)
}

// List returns entities of the given type, empty slice when none exist.
func (s *Store) List(ctx context.Context, typ string, f Filter) ([]*Entity, error) {
	return s.repo.List(ctx, typ, f)
}

// Update shallow-merges data over the stored payload: unspecified fields
// survive, the id never changes. Returns nil when no row matches — callers
// must treat that as not-found, not as created.
func (s *Store) Update(ctx context.Context, id uuid.UUID, typ, ownerID string, data map[string]any) (*Entity, error) {
	return s.repo.MergePayload(ctx, id, typ, ownerID, sanitize(data), s.now())
}

// Delete removes the row and reports whether one was actually removed.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, typ, ownerID string) (bool, error) {
	return s.repo.Delete(ctx, id, typ, ownerID)
}

// UpsertBySubtype maintains the one-record-per-(owner,type,subtype)
// invariant: insert when absent, shallow-merge when present, as one
// conditional write.
func (s *Store) UpsertBySubtype(ctx context.Context, typ, ownerID, subtype string, data map[string]any) (*Entity, error) {
	if typ == "" || ownerID == "" || subtype == "" {
		return nil, fmt.Errorf("upsert requires type, owner and subtype")
	}
	return s.repo.UpsertBySubtype(ctx, typ, ownerID, subtype, sanitize(data), s.now())
}

// GetBySubtype fetches the single (owner,type,subtype) row or nil.
func (s *Store) GetBySubtype(ctx context.Context, typ, ownerID, subtype string) (*Entity, error) {
	if typ == "" || ownerID == "" || subtype == "" {
		return nil, fmt.Errorf("lookup requires type, owner and subtype")
	}
	return s.repo.GetBySubtype(ctx, typ, ownerID, subtype)
}

// DeleteByTypes removes every row of the owner in the given type set, used
// by reset-my-data flows. Other owners and other types are never touched.
func (s *Store) DeleteByTypes(ctx context.Context, ownerID string, types []string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("bulk delete requires an owner")
	}
	return s.repo.DeleteByTypes(ctx, ownerID, types)
}

// ListByField returns entities of the type whose payload field equals value,
// newest first.
func (s *Store) ListByField(ctx context.Context, typ, ownerID, field, value string, limit int) ([]*Entity, error) {
	return s.repo.ListByField(ctx, typ, ownerID, field, value, limit)
}
