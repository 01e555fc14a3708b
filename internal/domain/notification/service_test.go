package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matricare/matricare/internal/domain/role"
	"github.com/matricare/matricare/internal/entity"
	"github.com/matricare/matricare/internal/platform/directory"
)

func newTestService() (*Service, *entity.Store, *directory.MemoryDirectory) {
	store := entity.NewStore(entity.NewMemoryRepository())
	dir := directory.NewMemoryDirectory()
	return NewService(store, dir, zerolog.Nop()), store, dir
}

func TestNotifyCreatesUnread(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	err := svc.Notify(ctx, "mother-1", Message{
		Type: "appointment_booked", Title: "New appointment", Body: "See details", Link: "/appointments/1",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	items, err := svc.ListForUser(ctx, "mother-1", false, 0, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d notifications, want 1", len(items))
	}
	n := items[0]
	if n.IsRead {
		t.Error("new notification arrived already read")
	}
	if n.Type != "appointment_booked" || n.Body != "See details" || n.Link != "/appointments/1" {
		t.Errorf("notification = %+v, want message fields preserved", n)
	}
}

func TestNotifyRequiresTarget(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.Notify(context.Background(), "", Message{Type: "x"}); err == nil {
		t.Fatal("Notify without target succeeded, want error")
	}
}

func TestMarkReadIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	if err := svc.Notify(ctx, "mother-1", Message{Type: "reminder"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	items, _ := svc.ListForUser(ctx, "mother-1", true, 0, 0)
	if len(items) != 1 {
		t.Fatalf("got %d unread, want 1", len(items))
	}
	id := items[0].ID

	if _, err := svc.MarkRead(ctx, "mother-2", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkRead by non-owner: err = %v, want ErrNotFound", err)
	}

	n, err := svc.MarkRead(ctx, "mother-1", id)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !n.IsRead {
		t.Error("MarkRead left IsRead false")
	}

	unread, _ := svc.ListForUser(ctx, "mother-1", true, 0, 0)
	if len(unread) != 0 {
		t.Errorf("unread filter still returns %d items after MarkRead", len(unread))
	}
}

func TestMarkReadUnknownIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.MarkRead(context.Background(), "mother-1", uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClearForUserLeavesOthersAlone(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	for i := 0; i < 3; i++ {
		if err := svc.Notify(ctx, "mother-1", Message{Type: "reminder"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if err := svc.Notify(ctx, "mother-2", Message{Type: "reminder"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	removed, err := svc.ClearForUser(ctx, "mother-1")
	if err != nil {
		t.Fatalf("ClearForUser: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	if items, _ := svc.ListForUser(ctx, "mother-2", false, 0, 0); len(items) != 1 {
		t.Error("ClearForUser touched another user's notifications")
	}
}

func TestBroadcastReachesEverySpelling(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newTestService()

	dir.Add("admin-1", "ops_admin")
	dir.Add("admin-2", "opsadmin")
	dir.Add("admin-3", "operations_admin")
	dir.Add("doc-1", "doctor")

	delivered, err := svc.BroadcastToRole(ctx, "Ops-Admin", Message{Type: "maintenance", Title: "Downtime"})
	if err != nil {
		t.Fatalf("BroadcastToRole: %v", err)
	}
	if delivered != 3 {
		t.Errorf("delivered = %d, want 3", delivered)
	}

	for _, id := range []string{"admin-1", "admin-2", "admin-3"} {
		items, _ := svc.ListForUser(ctx, id, false, 0, 0)
		if len(items) != 1 {
			t.Errorf("%s got %d notifications, want 1", id, len(items))
		}
	}
	if items, _ := svc.ListForUser(ctx, "doc-1", false, 0, 0); len(items) != 0 {
		t.Error("broadcast leaked to a user outside the role")
	}
}

func TestBroadcastRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.BroadcastToRole(context.Background(), "astronaut", Message{Type: "x"})
	if !errors.Is(err, role.ErrUnknownRole) {
		t.Fatalf("err = %v, want ErrUnknownRole", err)
	}
}

// flakyRepo fails inserts owned by one user so partial broadcast delivery can
// be observed.
type flakyRepo struct {
	entity.Repository
	failOwner string
}

func (r *flakyRepo) Insert(ctx context.Context, e *entity.Entity) error {
	if e.Owner() == r.failOwner {
		return fmt.Errorf("write rejected for %s", r.failOwner)
	}
	return r.Repository.Insert(ctx, e)
}

func TestBroadcastDeliversPartiallyOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: entity.NewMemoryRepository(), failOwner: "doc-2"}
	store := entity.NewStore(repo)
	dir := directory.NewMemoryDirectory()
	svc := NewService(store, dir, zerolog.Nop())

	dir.Add("doc-1", "doctor")
	dir.Add("doc-2", "doctor")
	dir.Add("doc-3", "doctor")

	delivered, err := svc.BroadcastToRole(ctx, "doctor", Message{Type: "policy_update"})
	if err != nil {
		t.Fatalf("BroadcastToRole: %v", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 of 3", delivered)
	}

	var got []string
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if items, _ := svc.ListForUser(ctx, id, false, 0, 0); len(items) == 1 {
			got = append(got, id)
		}
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "doc-1" || got[1] != "doc-3" {
		t.Errorf("recipients = %v, want [doc-1 doc-3]", got)
	}
}

func TestBroadcastWithoutDirectoryFails(t *testing.T) {
	store := entity.NewStore(entity.NewMemoryRepository())
	svc := NewService(store, nil, zerolog.Nop())
	if _, err := svc.BroadcastToRole(context.Background(), "doctor", Message{Type: "x"}); err == nil {
		t.Fatal("broadcast without a directory succeeded, want error")
	}
}

func TestListForUserPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	for i := 0; i < 5; i++ {
		if err := svc.Notify(ctx, "mother-1", Message{Type: "reminder", Title: fmt.Sprintf("n%d", i)}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	page, err := svc.ListForUser(ctx, "mother-1", false, 2, 2)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
}
