package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a thread-safe, in-memory Repository used by tests and
// local development. It mirrors the Postgres semantics, including the
// single-row guarantee of UpsertBySubtype.
type MemoryRepository struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*Entity
	inserts []uuid.UUID // preserves creation order for stable sorting
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]*Entity)}
}

func (m *MemoryRepository) clone(e *Entity) *Entity {
	c := *e
	c.Payload = copyPayload(e.Payload)
	return &c
}

func (m *MemoryRepository) Insert(_ context.Context, e *Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; ok {
		return fmt.Errorf("duplicate entity id %s", e.ID)
	}
	m.rows[e.ID] = m.clone(e)
	m.inserts = append(m.inserts, e.ID)
	return nil
}

func (m *MemoryRepository) match(e *Entity, typ, ownerID string) bool {
	return e.Type == typ && (ownerID == "" || e.Owner() == ownerID)
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID, typ, ownerID string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || !m.match(e, typ, ownerID) {
		return nil, nil
	}
	return m.clone(e), nil
}

// ordered returns all rows in insertion order, which tracks created_at for
// this repository.
func (m *MemoryRepository) ordered() []*Entity {
	out := make([]*Entity, 0, len(m.rows))
	for _, id := range m.inserts {
		if e, ok := m.rows[id]; ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryRepository) List(_ context.Context, typ string, f Filter) ([]*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []*Entity{}
	for _, e := range m.ordered() {
		if !m.match(e, typ, f.OwnerID) {
			continue
		}
		if f.Subtype != "" && e.SubtypeTag() != f.Subtype {
			continue
		}
		items = append(items, m.clone(e))
	}
	if f.Order == OrderDesc {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []*Entity{}, nil
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	return items, nil
}

func (m *MemoryRepository) MergePayload(_ context.Context, id uuid.UUID, typ, ownerID string, data map[string]any, updatedAt time.Time) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || !m.match(e, typ, ownerID) {
		return nil, nil
	}
	for k, v := range data {
		e.Payload[k] = v
	}
	e.UpdatedAt = updatedAt
	return m.clone(e), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID, typ, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || !m.match(e, typ, ownerID) {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *MemoryRepository) GetBySubtype(_ context.Context, typ, ownerID, subtype string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.findBySubtype(typ, ownerID, subtype)
	if e == nil {
		return nil, nil
	}
	return m.clone(e), nil
}

func (m *MemoryRepository) findBySubtype(typ, ownerID, subtype string) *Entity {
	for _, e := range m.ordered() {
		if e.Type == typ && e.Owner() == ownerID && e.SubtypeTag() == subtype {
			return e
		}
	}
	return nil
}

func (m *MemoryRepository) UpsertBySubtype(_ context.Context, typ, ownerID, subtype string, data map[string]any, now time.Time) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.findBySubtype(typ, ownerID, subtype); e != nil {
		for k, v := range data {
			e.Payload[k] = v
		}
		e.UpdatedAt = now
		return m.clone(e), nil
	}
	e := &Entity{
		ID:        uuid.New(),
		OwnerID:   strPtr(ownerID),
		Type:      typ,
		Subtype:   strPtr(subtype),
		Payload:   copyPayload(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.rows[e.ID] = e
	m.inserts = append(m.inserts, e.ID)
	return m.clone(e), nil
}

func (m *MemoryRepository) DeleteByTypes(_ context.Context, ownerID string, types []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	var n int64
	for id, e := range m.rows {
		if e.Owner() == ownerID && typeSet[e.Type] {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) ListByField(_ context.Context, typ, ownerID, field, value string, limit int) ([]*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []*Entity{}
	ordered := m.ordered()
	for i := len(ordered) - 1; i >= 0; i-- {
		e := ordered[i]
		if !m.match(e, typ, ownerID) {
			continue
		}
		if s, ok := e.Payload[field].(string); !ok || s != value {
			continue
		}
		items = append(items, m.clone(e))
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}
