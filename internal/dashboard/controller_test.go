package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/editgate"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

type fakeGateway struct {
	listFn   func(context.Context) ([]store.BuildUpdate, error)
	createFn func(context.Context, store.BuildUpdate) (store.BuildUpdate, error)
	updateFn func(context.Context, store.BuildUpdate) (store.BuildUpdate, error)
	deleteFn func(context.Context, string) error

	createCalls int
	deleteCalls int
}

func (f *fakeGateway) List(ctx context.Context) ([]store.BuildUpdate, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) Create(ctx context.Context, item store.BuildUpdate) (store.BuildUpdate, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(ctx, item)
	}
	item.ID = "bu-new"
	item.Revision = 1
	return item, nil
}

func (f *fakeGateway) Update(ctx context.Context, item store.BuildUpdate) (store.BuildUpdate, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, item)
	}
	item.Revision++
	return item, nil
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.deleteCalls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

const editPassword = "let-me-edit"

func verifyEdit(password string) error {
	if password != editPassword {
		return errors.New("wrong password")
	}
	return nil
}

func alwaysConfirm(string) bool { return true }

func newController(gw *fakeGateway, opts ...Option[store.BuildUpdate]) *Controller[store.BuildUpdate] {
	return NewController[store.BuildUpdate]("updates", gw, editgate.New(verifyEdit), opts...)
}

func unlockedController(t *testing.T, gw *fakeGateway, opts ...Option[store.BuildUpdate]) *Controller[store.BuildUpdate] {
	t.Helper()
	c := newController(gw, opts...)
	if err := c.Unlock(editPassword); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	return c
}

func TestRefreshReplacesLocalList(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			return []store.BuildUpdate{{ID: "bu-1"}, {ID: "bu-2"}}, nil
		},
	}
	c := newController(gw)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if items := c.Items(); len(items) != 2 || items[0].ID != "bu-1" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if c.Err() != "" {
		t.Fatalf("expected no error, got %q", c.Err())
	}
	if c.Loading() {
		t.Fatal("expected loading to clear")
	}
}

func TestRefreshFailureKeepsStaleList(t *testing.T) {
	calls := 0
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			calls++
			if calls == 1 {
				return []store.BuildUpdate{{ID: "bu-1"}}, nil
			}
			return nil, errors.New("gateway unreachable")
		},
	}
	c := newController(gw)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected second refresh to fail")
	}
	if items := c.Items(); len(items) != 1 || items[0].ID != "bu-1" {
		t.Fatalf("expected stale list to survive, got %+v", items)
	}
	if c.Err() != "gateway unreachable" {
		t.Fatalf("expected last error kept, got %q", c.Err())
	}
	if c.Loading() {
		t.Fatal("expected loading to clear after failure")
	}
}

func TestRefreshAppliesCallTimeout(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(ctx context.Context) ([]store.BuildUpdate, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected a deadline on the gateway context")
			}
			return nil, nil
		},
	}
	c := newController(gw, WithTimeout[store.BuildUpdate](time.Second))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestAddWhileLockedOpensChallengeWithoutGatewayCall(t *testing.T) {
	gw := &fakeGateway{}
	challenged := ""
	c := newController(gw, WithChallenge[store.BuildUpdate](func(view string) (string, bool) {
		challenged = view
		return "", false
	}))

	_, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"})
	if !errors.Is(err, editgate.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if challenged != "updates" {
		t.Fatalf("expected challenge for updates view, got %q", challenged)
	}
	if gw.createCalls != 0 {
		t.Fatalf("gateway must not be called while locked, got %d calls", gw.createCalls)
	}
	if c.GateState() != editgate.Locked {
		t.Fatalf("expected gate locked after declined challenge, got %v", c.GateState())
	}
}

func TestAnsweredChallengeUnlocksButNeverReplays(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(gw, WithChallenge[store.BuildUpdate](func(string) (string, bool) {
		return editPassword, true
	}))

	_, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"})
	if !errors.Is(err, editgate.ErrLocked) {
		t.Fatalf("expected ErrLocked even after successful challenge, got %v", err)
	}
	if gw.createCalls != 0 {
		t.Fatalf("withheld mutation must not replay, got %d gateway calls", gw.createCalls)
	}
	if c.GateState() != editgate.Unlocked {
		t.Fatalf("expected gate unlocked, got %v", c.GateState())
	}

	created, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"})
	if err != nil {
		t.Fatalf("re-invoke: %v", err)
	}
	if gw.createCalls != 1 {
		t.Fatalf("expected one gateway call after re-invoke, got %d", gw.createCalls)
	}
	if created.ID != "bu-new" {
		t.Fatalf("expected confirmed record, got %+v", created)
	}
}

func TestWrongChallengePasswordKeepsGateClosed(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(gw, WithChallenge[store.BuildUpdate](func(string) (string, bool) {
		return "nope", true
	}))

	_, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"})
	if !errors.Is(err, editgate.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if c.GateState() != editgate.Unlocking {
		t.Fatalf("expected challenge to stay open, got %v", c.GateState())
	}
	if gw.createCalls != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestAddPrependsConfirmedRecord(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			return []store.BuildUpdate{{ID: "bu-old"}}, nil
		},
	}
	c := unlockedController(t, gw)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := c.Add(context.Background(), store.BuildUpdate{Title: "fresh"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	items := c.Items()
	if len(items) != 2 || items[0].ID != "bu-new" || items[1].ID != "bu-old" {
		t.Fatalf("expected new record prepended, got %+v", items)
	}
}

func TestAddFailureLeavesLocalListUntouched(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(context.Context, store.BuildUpdate) (store.BuildUpdate, error) {
			return store.BuildUpdate{}, errors.New("rejected")
		},
	}
	c := unlockedController(t, gw)
	if _, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(c.Items()) != 0 {
		t.Fatalf("local list must not change on failure, got %+v", c.Items())
	}
}

func TestEditPatchesRecordByID(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			return []store.BuildUpdate{{ID: "bu-1", Title: "old", Revision: 1}, {ID: "bu-2", Revision: 1}}, nil
		},
	}
	c := unlockedController(t, gw)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	updated, err := c.Edit(context.Background(), store.BuildUpdate{ID: "bu-1", Title: "new", Revision: 1})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Revision != 2 {
		t.Fatalf("expected bumped revision, got %d", updated.Revision)
	}
	items := c.Items()
	if items[0].Title != "new" || items[0].Revision != 2 {
		t.Fatalf("expected patched record, got %+v", items[0])
	}
	if items[1].ID != "bu-2" || items[1].Revision != 1 {
		t.Fatalf("expected sibling untouched, got %+v", items[1])
	}
}

func TestRemoveDeclinedConfirmationSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	c := unlockedController(t, gw, WithConfirm[store.BuildUpdate](func(string) bool { return false }))

	err := c.Remove(context.Background(), "bu-1")
	if !errors.Is(err, ErrConfirmDeclined) {
		t.Fatalf("expected ErrConfirmDeclined, got %v", err)
	}
	if gw.deleteCalls != 0 {
		t.Fatalf("gateway delete must not run, got %d calls", gw.deleteCalls)
	}
}

func TestRemoveWithoutConfirmFuncIsRefused(t *testing.T) {
	gw := &fakeGateway{}
	c := unlockedController(t, gw)
	if err := c.Remove(context.Background(), "bu-1"); !errors.Is(err, ErrConfirmDeclined) {
		t.Fatalf("expected ErrConfirmDeclined, got %v", err)
	}
	if gw.deleteCalls != 0 {
		t.Fatal("gateway delete must not run")
	}
}

func TestRemoveFiltersRecordAfterConfirmedDelete(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			return []store.BuildUpdate{{ID: "bu-1"}, {ID: "bu-2"}}, nil
		},
	}
	c := unlockedController(t, gw, WithConfirm[store.BuildUpdate](alwaysConfirm))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := c.Remove(context.Background(), "bu-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if gw.deleteCalls != 1 {
		t.Fatalf("expected one delete call, got %d", gw.deleteCalls)
	}
	items := c.Items()
	if len(items) != 1 || items[0].ID != "bu-2" {
		t.Fatalf("expected bu-1 filtered out, got %+v", items)
	}
}

func TestRemoveFailureLeavesLocalListUntouched(t *testing.T) {
	gw := &fakeGateway{
		listFn: func(context.Context) ([]store.BuildUpdate, error) {
			return []store.BuildUpdate{{ID: "bu-1"}}, nil
		},
		deleteFn: func(context.Context, string) error {
			return errors.New("gateway unreachable")
		},
	}
	c := unlockedController(t, gw, WithConfirm[store.BuildUpdate](alwaysConfirm))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := c.Remove(context.Background(), "bu-1"); err == nil {
		t.Fatal("expected error")
	}
	if len(c.Items()) != 1 {
		t.Fatalf("local list must not change on failure, got %+v", c.Items())
	}
}

func TestLockLeavesEditMode(t *testing.T) {
	gw := &fakeGateway{}
	c := unlockedController(t, gw)
	c.Lock()
	if _, err := c.Add(context.Background(), store.BuildUpdate{Title: "x"}); !errors.Is(err, editgate.ErrLocked) {
		t.Fatalf("expected ErrLocked after lock, got %v", err)
	}
}
