package entity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore() *Store {
	return NewStore(NewMemoryRepository())
}

func TestCreateStampsIDAndTimestamps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClock(fixedClock(at))

	e, err := store.Create(ctx, "journal_entry", "mother-1", "", map[string]any{
		"id":   "spoofed",
		"mood": "great",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Error("Create left a nil id")
	}
	if !e.CreatedAt.Equal(at) || !e.UpdatedAt.Equal(at) {
		t.Errorf("timestamps = (%v, %v), want both %v", e.CreatedAt, e.UpdatedAt, at)
	}
	if _, ok := e.Payload["id"]; ok {
		t.Error("reserved id key was not stripped from payload")
	}
	if e.Payload["mood"] != "great" {
		t.Errorf("payload = %v, want mood preserved", e.Payload)
	}
}

func TestCreateHonorsExplicitCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	store.SetClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	imported := "2025-06-15T08:30:00Z"
	e, err := store.Create(ctx, "journal_entry", "mother-1", "", map[string]any{"createdAt": imported})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want, _ := time.Parse(time.RFC3339, imported)
	if !e.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v from payload", e.CreatedAt, want)
	}
}

func TestCreateRequiresType(t *testing.T) {
	if _, err := newTestStore().Create(context.Background(), "", "mother-1", "", nil); err == nil {
		t.Fatal("Create with empty type succeeded, want error")
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	e, err := newTestStore().Get(context.Background(), uuid.New(), "journal_entry", "mother-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e != nil {
		t.Errorf("Get unknown id = %+v, want nil", e)
	}
}

func TestGetScopedToOwnerAndType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	e, err := store.Create(ctx, "journal_entry", "mother-1", "", map[string]any{"mood": "ok"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, _ := store.Get(ctx, e.ID, "journal_entry", "mother-2"); got != nil {
		t.Error("Get with wrong owner returned a row")
	}
	if got, _ := store.Get(ctx, e.ID, "appointment", "mother-1"); got != nil {
		t.Error("Get with wrong type returned a row")
	}
	if got, _ := store.Get(ctx, e.ID, "journal_entry", "mother-1"); got == nil {
		t.Error("Get with matching scope returned nil")
	}
}

func TestUpdateShallowMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	e, err := store.Create(ctx, "journal_entry", "mother-1", "", map[string]any{
		"mood": "tired", "week": 22,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	later := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.SetClock(fixedClock(later))

	updated, err := store.Update(ctx, e.ID, "journal_entry", "mother-1", map[string]any{
		"mood": "rested", "id": "spoofed",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated == nil {
		t.Fatal("Update returned nil for an existing row")
	}
	if updated.ID != e.ID {
		t.Errorf("Update changed id %s -> %s", e.ID, updated.ID)
	}
	if updated.Payload["mood"] != "rested" {
		t.Errorf("mood = %v, want rested", updated.Payload["mood"])
	}
	if updated.Payload["week"] != 22 {
		t.Errorf("week = %v, want untouched field preserved", updated.Payload["week"])
	}
	if _, ok := updated.Payload["id"]; ok {
		t.Error("reserved id key leaked into payload via update")
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, later)
	}
}

func TestUpdateMissingReturnsNil(t *testing.T) {
	updated, err := newTestStore().Update(context.Background(), uuid.New(), "journal_entry", "mother-1", map[string]any{"mood": "ok"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != nil {
		t.Errorf("Update of missing row = %+v, want nil", updated)
	}
}

func TestDeleteReportsWhetherRowExisted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	e, _ := store.Create(ctx, "journal_entry", "mother-1", "", nil)

	ok, err := store.Delete(ctx, e.ID, "journal_entry", "mother-1")
	if err != nil || !ok {
		t.Fatalf("Delete existing = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = store.Delete(ctx, e.ID, "journal_entry", "mother-1")
	if err != nil || ok {
		t.Fatalf("Delete again = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestUpsertBySubtypeMergesIntoSingleRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	first, err := store.UpsertBySubtype(ctx, "medical_record", "mother-1", "report", map[string]any{
		"bloodType": "O+", "summary": "initial visit",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := store.UpsertBySubtype(ctx, "medical_record", "mother-1", "report", map[string]any{
		"summary": "week 24 checkup", "allergies": []any{"penicillin"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second upsert created a new row %s, want reuse of %s", second.ID, first.ID)
	}
	if second.Payload["bloodType"] != "O+" {
		t.Error("field from first write lost after merge")
	}
	if second.Payload["summary"] != "week 24 checkup" {
		t.Errorf("summary = %v, want overwritten by second write", second.Payload["summary"])
	}

	rows, err := store.List(ctx, "medical_record", Filter{OwnerID: "mother-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("found %d medical_record rows, want exactly 1", len(rows))
	}
}

func TestUpsertBySubtypeConcurrentWritersConverge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.UpsertBySubtype(ctx, "medical_record", "mother-1", "report", map[string]any{
				fmt.Sprintf("field%d", i): i,
			})
			if err != nil {
				t.Errorf("concurrent upsert #%d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rows, err := store.List(ctx, "medical_record", Filter{OwnerID: "mother-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("concurrent upserts produced %d rows, want 1", len(rows))
	}
	if len(rows[0].Payload) != 8 {
		t.Errorf("merged payload has %d fields, want all 8 writes present", len(rows[0].Payload))
	}
}

func TestUpsertBySubtypeValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	for _, tt := range []struct{ typ, owner, subtype string }{
		{"", "mother-1", "report"},
		{"medical_record", "", "report"},
		{"medical_record", "mother-1", ""},
	} {
		if _, err := store.UpsertBySubtype(ctx, tt.typ, tt.owner, tt.subtype, nil); err == nil {
			t.Errorf("UpsertBySubtype(%q, %q, %q) succeeded, want error", tt.typ, tt.owner, tt.subtype)
		}
	}
}

func TestGetBySubtypeUnknownReturnsNil(t *testing.T) {
	e, err := newTestStore().GetBySubtype(context.Background(), "medical_record", "mother-1", "report")
	if err != nil {
		t.Fatalf("GetBySubtype: %v", err)
	}
	if e != nil {
		t.Errorf("GetBySubtype with no row = %+v, want nil", e)
	}
}

func TestDeleteByTypesScoping(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	mustCreate := func(typ, owner string) {
		t.Helper()
		if _, err := store.Create(ctx, typ, owner, "", nil); err != nil {
			t.Fatalf("Create(%s, %s): %v", typ, owner, err)
		}
	}
	mustCreate("notification", "mother-1")
	mustCreate("notification", "mother-1")
	mustCreate("journal_entry", "mother-1")
	mustCreate("notification", "mother-2")

	n, err := store.DeleteByTypes(ctx, "mother-1", []string{"notification"})
	if err != nil {
		t.Fatalf("DeleteByTypes: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d rows, want 2", n)
	}

	if rows, _ := store.List(ctx, "journal_entry", Filter{OwnerID: "mother-1"}); len(rows) != 1 {
		t.Error("other type of the same owner was removed")
	}
	if rows, _ := store.List(ctx, "notification", Filter{OwnerID: "mother-2"}); len(rows) != 1 {
		t.Error("same type of another owner was removed")
	}
}

func TestDeleteByTypesRequiresOwner(t *testing.T) {
	if _, err := newTestStore().DeleteByTypes(context.Background(), "", []string{"notification"}); err == nil {
		t.Fatal("DeleteByTypes with empty owner succeeded, want error")
	}
}

func TestListOrderAndPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.SetClock(fixedClock(base.Add(time.Duration(i) * time.Hour)))
		if _, err := store.Create(ctx, "journal_entry", "mother-1", "", map[string]any{"seq": i}); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}

	asc, err := store.List(ctx, "journal_entry", Filter{OwnerID: "mother-1", Order: OrderAsc})
	if err != nil {
		t.Fatalf("List asc: %v", err)
	}
	if len(asc) != 5 || asc[0].Payload["seq"] != 0 || asc[4].Payload["seq"] != 4 {
		t.Errorf("ascending order wrong: %v", seqs(asc))
	}

	desc, err := store.List(ctx, "journal_entry", Filter{OwnerID: "mother-1", Order: OrderDesc, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List desc page: %v", err)
	}
	if len(desc) != 2 || desc[0].Payload["seq"] != 3 || desc[1].Payload["seq"] != 2 {
		t.Errorf("descending page = %v, want [3 2]", seqs(desc))
	}

	past, err := store.List(ctx, "journal_entry", Filter{OwnerID: "mother-1", Offset: 10})
	if err != nil {
		t.Fatalf("List past end: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("offset past end returned %d rows, want 0", len(past))
	}

	empty, err := store.List(ctx, "vital_sign", Filter{OwnerID: "mother-1"})
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List of unknown type = %v, want empty slice", empty)
	}
}

func TestListByFieldMatchesStringFieldNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		store.SetClock(fixedClock(base.Add(time.Duration(i) * time.Minute)))
		e, err := store.Create(ctx, "medical_consent", "mother-1", "", map[string]any{"clinicianId": "doc-9"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, e.ID)
	}
	store.SetClock(fixedClock(base.Add(time.Hour)))
	if _, err := store.Create(ctx, "medical_consent", "mother-1", "", map[string]any{"clinicianId": "doc-other"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.ListByField(ctx, "medical_consent", "mother-1", "clinicianId", "doc-9", 10)
	if err != nil {
		t.Fatalf("ListByField: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("matched %d rows, want 3", len(got))
	}
	if got[0].ID != ids[2] {
		t.Errorf("first result = %s, want newest %s", got[0].ID, ids[2])
	}

	capped, err := store.ListByField(ctx, "medical_consent", "mother-1", "clinicianId", "doc-9", 2)
	if err != nil {
		t.Fatalf("ListByField limited: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("limit ignored: got %d rows, want 2", len(capped))
	}
}

func TestEntityDecode(t *testing.T) {
	e := &Entity{Payload: map[string]any{"summary": "stable", "week": 24}}
	var out struct {
		Summary string `json:"summary"`
		Week    int    `json:"week"`
	}
	if err := e.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Summary != "stable" || out.Week != 24 {
		t.Errorf("Decode = %+v, want summary/week mapped", out)
	}
}

func seqs(entities []*Entity) []any {
	out := make([]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Payload["seq"])
	}
	return out
}
