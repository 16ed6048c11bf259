package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

type fixture struct {
	svc   *Service
	store *sqlite.Store
	alice models.Identity
	bob   models.Identity
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tasks.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	alice, err := store.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	return fixture{
		svc:   NewService(store, nil),
		store: store,
		alice: models.Identity{UserID: alice.ID, Username: alice.Username},
		bob:   models.Identity{UserID: bob.ID, Username: bob.Username},
	}
}

func TestCreateThenViewRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.alice, CreateInput{Title: "Buy milk", Description: "2%", Complete: false})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.ViewOne(ctx, f.alice, created.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got.Title != "Buy milk" || got.Description != "2%" || got.Complete {
		t.Errorf("unexpected task %+v", got)
	}
	if got.OwnerID != f.alice.UserID {
		t.Errorf("owner = %d, want %d", got.OwnerID, f.alice.UserID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestListMineExcludesOtherUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"a1", "a2", "a3"} {
		if _, err := f.svc.Create(ctx, f.alice, CreateInput{Title: title}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if _, err := f.svc.Create(ctx, f.bob, CreateInput{Title: "b1"}); err != nil {
		t.Fatalf("create b1: %v", err)
	}

	listing, err := f.svc.ListMine(ctx, f.bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Tasks) != 1 || listing.Tasks[0].Title != "b1" {
		t.Fatalf("bob sees %+v", listing.Tasks)
	}
	for _, task := range listing.Tasks {
		if task.OwnerID != f.bob.UserID {
			t.Errorf("bob's listing contains task owned by %d", task.OwnerID)
		}
	}
}

func TestListMineOrdersAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inputs := []CreateInput{
		{Title: "done 1", Complete: true},
		{Title: "open 1"},
		{Title: "done 2", Complete: true},
		{Title: "open 2"},
		{Title: "open 3"},
	}
	for _, in := range inputs {
		if _, err := f.svc.Create(ctx, f.alice, in); err != nil {
			t.Fatalf("create %s: %v", in.Title, err)
		}
	}

	listing, err := f.svc.ListMine(ctx, f.alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing.IncompleteCount != 3 {
		t.Errorf("incomplete count = %d, want 3", listing.IncompleteCount)
	}

	seenComplete := false
	for _, task := range listing.Tasks {
		if task.Complete {
			seenComplete = true
			continue
		}
		if seenComplete {
			t.Fatalf("incomplete task %q listed after a complete one", task.Title)
		}
	}
}

func TestCreateBindsOwnerFromIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.bob, CreateInput{Title: "mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.OwnerID != f.bob.UserID {
		t.Errorf("owner = %d, want %d", task.OwnerID, f.bob.UserID)
	}
}

func TestCreateValidatesTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		title string
		ok    bool
	}{
		{"empty", "", false},
		{"blank", "   ", false},
		{"max length", strings.Repeat("x", 200), true},
		{"max length multibyte", strings.Repeat("ż", 200), true},
		{"too long", strings.Repeat("x", 201), false},
		{"padded to max length", "  " + strings.Repeat("x", 200) + "\t", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.alice, CreateInput{Title: tt.title})
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok {
				var verr *models.ValidationError
				if !errors.As(err, &verr) || verr.Fields["title"] == "" {
					t.Fatalf("expected title validation error, got %v", err)
				}
			}
		})
	}
}

func TestCreateAllowsEmptyDescription(t *testing.T) {
	f := newFixture(t)
	task, err := f.svc.Create(context.Background(), f.alice, CreateInput{Title: "t", Description: ""})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Description != "" {
		t.Errorf("description = %q", task.Description)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.alice, CreateInput{Title: "draft"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in := UpdateInput{Title: "final", Description: "details", Complete: true}
	once, err := f.svc.Update(ctx, f.alice, task.ID, in)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	twice, err := f.svc.Update(ctx, f.alice, task.ID, in)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if once.Title != twice.Title || once.Description != twice.Description || once.Complete != twice.Complete || once.OwnerID != twice.OwnerID {
		t.Errorf("second update changed state: %+v vs %+v", once, twice)
	}
	if twice.Title != "final" || twice.Description != "details" || !twice.Complete {
		t.Errorf("unexpected state %+v", twice)
	}
	if !twice.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("created_at changed")
	}
}

func TestOtherUsersCannotTouchTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.alice, CreateInput{Title: "private"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.ViewOne(ctx, f.bob, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("view: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.bob, task.ID, UpdateInput{Title: "stolen"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.bob, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}

	still, err := f.svc.ViewOne(ctx, f.alice, task.ID)
	if err != nil {
		t.Fatalf("view as owner: %v", err)
	}
	if still.Title != "private" || still.OwnerID != f.alice.UserID {
		t.Errorf("task modified by other user: %+v", still)
	}
}

func TestDeleteMissingTaskIsNotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Delete(context.Background(), f.alice, 9999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.alice, CreateInput{Title: "gone soon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.ViewOne(ctx, f.alice, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected task gone, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestAnonymousCallsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var anon models.Identity

	if _, err := f.svc.ListMine(ctx, anon); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("list: %v", err)
	}
	if _, err := f.svc.ViewOne(ctx, anon, 1); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("view: %v", err)
	}
	if _, err := f.svc.Create(ctx, anon, CreateInput{Title: "x"}); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("create: %v", err)
	}
	if _, err := f.svc.Update(ctx, anon, 1, UpdateInput{Title: "x"}); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("update: %v", err)
	}
	if err := f.svc.Delete(ctx, anon, 1); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("delete: %v", err)
	}
}
