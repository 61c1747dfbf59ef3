package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "saferound-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("UpsertUser creates and replaces", func(t *testing.T) {
		user := &models.User{ID: "alice@example.com", FirstName: "Alice", LastName: "Smith", WeightKg: 60, Sex: models.SexFemale}
		if err := store.UpsertUser(ctx, user); err != nil {
			t.Fatalf("UpsertUser failed: %v", err)
		}
		if user.UpdatedAt == 0 {
			t.Error("Expected UpdatedAt to be set")
		}

		user.Phone = "555-0100"
		user.UpdatedAt = 0
		if err := store.UpsertUser(ctx, user); err != nil {
			t.Fatalf("UpsertUser (update) failed: %v", err)
		}

		got, err := store.GetUser(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got == nil {
			t.Fatal("Expected user, got nil")
		}
		if got.Phone != "555-0100" {
			t.Errorf("Phone mismatch: got %s, want 555-0100", got.Phone)
		}
		if got.Sex != models.SexFemale {
			t.Errorf("Sex mismatch: got %s, want female", got.Sex)
		}
		if got.FullName() != "Alice Smith" {
			t.Errorf("FullName mismatch: got %s", got.FullName())
		}
	})

	t.Run("GetUser returns nil for unknown user", func(t *testing.T) {
		got, err := store.GetUser(ctx, "nobody")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("SetCutOff", func(t *testing.T) {
		if err := store.SetCutOff(ctx, "alice@example.com", true); err != nil {
			t.Fatalf("SetCutOff failed: %v", err)
		}
		got, err := store.GetUser(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if !got.IsCutOff {
			t.Error("Expected user to be cut off")
		}

		err = store.SetCutOff(ctx, "nobody", true)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetUsersByIDs omits missing users", func(t *testing.T) {
		if err := store.UpsertUser(ctx, &models.User{ID: "bob", FirstName: "Bob"}); err != nil {
			t.Fatalf("UpsertUser failed: %v", err)
		}
		users, err := store.GetUsersByIDs(ctx, []string{"alice@example.com", "bob", "ghost"})
		if err != nil {
			t.Fatalf("GetUsersByIDs failed: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("Expected 2 users, got %d", len(users))
		}
		if _, ok := users["ghost"]; ok {
			t.Error("Expected ghost to be omitted")
		}
	})
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Code: "123456", Name: "Roomies", MemberIDs: []string{"alice"}}

	t.Run("CreateGroup generates ID", func(t *testing.T) {
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("CreateGroup rejects duplicate code", func(t *testing.T) {
		err := store.CreateGroup(ctx, &models.Group{Code: "123456", Name: "Other"})
		if !errors.Is(err, storage.ErrCodeTaken) {
			t.Errorf("Expected ErrCodeTaken, got %v", err)
		}
	})

	t.Run("AddMember is idempotent and keeps join order", func(t *testing.T) {
		added, err := store.AddMember(ctx, group.ID, "bob")
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if !added {
			t.Error("Expected bob to be added")
		}

		added, err = store.AddMember(ctx, group.ID, "bob")
		if err != nil {
			t.Fatalf("AddMember (again) failed: %v", err)
		}
		if added {
			t.Error("Expected second join to be a no-op")
		}

		got, err := store.GetGroupByCode(ctx, "123456")
		if err != nil {
			t.Fatalf("GetGroupByCode failed: %v", err)
		}
		want := []string{"alice", "bob"}
		if len(got.MemberIDs) != len(want) {
			t.Fatalf("Members mismatch: got %v, want %v", got.MemberIDs, want)
		}
		for i := range want {
			if got.MemberIDs[i] != want[i] {
				t.Errorf("Member %d: got %s, want %s", i, got.MemberIDs[i], want[i])
			}
		}
	})

	t.Run("lookups return ErrNotFound", func(t *testing.T) {
		if _, err := store.GetGroup(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetGroup: expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetGroupByCode(ctx, "000000"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetGroupByCode: expected ErrNotFound, got %v", err)
		}
		if _, err := store.FindGroupByMember(ctx, "carol"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("FindGroupByMember: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindGroupByMember", func(t *testing.T) {
		got, err := store.FindGroupByMember(ctx, "bob")
		if err != nil {
			t.Fatalf("FindGroupByMember failed: %v", err)
		}
		if got.ID != group.ID {
			t.Errorf("Group mismatch: got %s, want %s", got.ID, group.ID)
		}
	})

	t.Run("ListGroups includes members", func(t *testing.T) {
		other := &models.Group{Code: "654321", Name: "Work", MemberIDs: []string{"carol"}}
		if err := store.CreateGroup(ctx, other); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		groups, err := store.ListGroups(ctx)
		if err != nil {
			t.Fatalf("ListGroups failed: %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(groups))
		}
		counts := map[string]int{}
		for _, g := range groups {
			counts[g.Code] = len(g.MemberIDs)
		}
		if counts["123456"] != 2 || counts["654321"] != 1 {
			t.Errorf("Unexpected member counts: %v", counts)
		}
	})
}

func TestDrinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.LastDrink(ctx, "alice")
	if err != nil {
		t.Fatalf("LastDrink failed: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected no drink, got %+v", got)
	}

	for i, ts := range []int64{1000, 3000, 2000} {
		drink := &models.DrinkRecord{UserID: "alice", DrinkID: "beer", AlcoholGrams: 14, Timestamp: ts}
		if err := store.RecordDrink(ctx, drink); err != nil {
			t.Fatalf("RecordDrink %d failed: %v", i, err)
		}
		if drink.ID == "" {
			t.Error("Expected drink ID to be generated")
		}
	}

	got, err = store.LastDrink(ctx, "alice")
	if err != nil {
		t.Fatalf("LastDrink failed: %v", err)
	}
	if got == nil || got.Timestamp != 3000 {
		t.Errorf("Expected latest drink at 3000, got %+v", got)
	}
}
