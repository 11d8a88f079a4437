package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foundkeep/foundkeep/internal/db"
	"github.com/foundkeep/foundkeep/internal/model"
)

func newTestItem(name string) *model.Item {
	return &model.Item{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  "Accessories",
		Location:  "Library",
		FoundDate: time.Now().UTC().Truncate(time.Second),
		Image:     "/uploads/" + uuid.NewString() + ".jpg",
		AddedBy:   "guard1",
	}
}

func mustInsert(t *testing.T, database *sql.DB, item *model.Item) *model.Item {
	t.Helper()
	inserted, err := InsertItem(context.Background(), database, item)
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	return inserted
}

func TestInsertAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Blue Backpack"))
	if item.Status != model.StatusAvailable {
		t.Errorf("expected status 'available', got %q", item.Status)
	}
	if item.ClaimedBy != nil {
		t.Error("expected no claim record on a new item")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil || got.Name != "Blue Backpack" {
		t.Fatalf("expected to read back 'Blue Backpack', got %+v", got)
	}

	missing, err := GetItem(ctx, database, uuid.NewString())
	if err != nil {
		t.Fatalf("GetItem missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}
}

func TestInsertItemEnumConstraint(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := newTestItem("Bad Category")
	item.Category = "Furniture"
	if _, err := InsertItem(ctx, database, item); err == nil {
		t.Error("expected constraint error for unknown category")
	}
}

func TestListItemsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustInsert(t, database, newTestItem("Item A"))
	mustInsert(t, database, newTestItem("Item B"))

	ok, err := ClaimItem(ctx, database, a.ID, &model.ClaimRecord{
		StudentName: "A", RollNumber: "1", ContactNumber: "555", ClaimedDate: time.Now(),
	})
	if err != nil || !ok {
		t.Fatalf("ClaimItem: ok=%v err=%v", ok, err)
	}

	all, err := ListItems(ctx, database, "", 0)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 items, got %d", len(all))
	}

	available, _ := ListItems(ctx, database, model.StatusAvailable, 0)
	if len(available) != 1 || available[0].Name != "Item B" {
		t.Errorf("expected only 'Item B' available, got %+v", available)
	}

	limited, _ := ListItems(ctx, database, "", 1)
	if len(limited) != 1 {
		t.Errorf("expected 1 item with limit, got %d", len(limited))
	}
}

func TestSearchItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	backpack := newTestItem("Blue Backpack")
	backpack.Description = "Has a broken zipper"
	mustInsert(t, database, backpack)

	keys := newTestItem("Hostel Keys")
	keys.Category = "Keys"
	keys.Location = "Sports Field"
	mustInsert(t, database, keys)

	tests := []struct {
		term string
		want int
	}{
		{"BACKPACK", 1}, // name, case-insensitive
		{"zipper", 1},   // description
		{"keys", 1},     // category
		{"sports", 1},   // location
		{"backpack", 1},
		{"calculator", 0},
		{"", 2}, // empty term matches everything
	}
	for _, tt := range tests {
		got, err := SearchItems(ctx, database, tt.term)
		if err != nil {
			t.Fatalf("SearchItems(%q): %v", tt.term, err)
		}
		if len(got) != tt.want {
			t.Errorf("SearchItems(%q) = %d items, want %d", tt.term, len(got), tt.want)
		}
	}
}

func TestClaimItemCompareAndSet(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Claim Me"))
	claim := &model.ClaimRecord{
		StudentName:   "Ana",
		RollNumber:    "123",
		StudyYear:     "Second Year",
		ContactNumber: "555",
		ClaimedDate:   time.Now().UTC().Truncate(time.Second),
	}

	ok, err := ClaimItem(ctx, database, item.ID, claim)
	if err != nil {
		t.Fatalf("ClaimItem: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}

	// A second claim must observe the status change and fail.
	ok, err = ClaimItem(ctx, database, item.ID, &model.ClaimRecord{
		StudentName: "Bor", RollNumber: "456", ContactNumber: "666", ClaimedDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("second ClaimItem: %v", err)
	}
	if ok {
		t.Fatal("expected second claim to fail")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.StatusClaimed {
		t.Errorf("expected status 'claimed', got %q", got.Status)
	}
	if got.ClaimedBy == nil || got.ClaimedBy.StudentName != "Ana" {
		t.Errorf("expected claim by Ana to be preserved, got %+v", got.ClaimedBy)
	}
}

func TestConcurrentClaims(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Contested Item"))

	const attempts = 8
	results := make([]bool, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ClaimItem(ctx, database, item.ID, &model.ClaimRecord{
				StudentName:   "Student",
				RollNumber:    "roll",
				ContactNumber: "555",
				ClaimedDate:   time.Now(),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("claim %d: %v", i, errs[i])
		}
		if results[i] {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", winners)
	}
}

func TestDeliverItemPreservesClaimData(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Deliver Me"))
	claimedDate := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	ClaimItem(ctx, database, item.ID, &model.ClaimRecord{
		StudentName:   "Ana",
		RollNumber:    "123",
		StudyYear:     "Second Year",
		ContactNumber: "555",
		ClaimedDate:   claimedDate,
	})

	// Deliver with an empty payload: every claim field must survive.
	ok, err := DeliverItem(ctx, database, item.ID, nil)
	if err != nil {
		t.Fatalf("DeliverItem: %v", err)
	}
	if !ok {
		t.Fatal("expected delivery to succeed")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.StatusDelivered {
		t.Errorf("expected status 'delivered', got %q", got.Status)
	}
	if got.ClaimedBy == nil {
		t.Fatal("expected claim record to survive delivery")
	}
	if got.ClaimedBy.StudentName != "Ana" || got.ClaimedBy.RollNumber != "123" {
		t.Errorf("claim fields lost: %+v", got.ClaimedBy)
	}
	if !got.ClaimedBy.ClaimedDate.Equal(claimedDate) {
		t.Errorf("claimedDate changed: got %v, want %v", got.ClaimedBy.ClaimedDate, claimedDate)
	}
}

func TestDeliverItemMergesPartialUpdate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Merge Me"))
	claimedDate := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	ClaimItem(ctx, database, item.ID, &model.ClaimRecord{
		StudentName:   "Ana",
		RollNumber:    "123",
		ContactNumber: "555",
		ClaimedDate:   claimedDate,
	})

	// Update only the contact number; everything else must be preserved.
	DeliverItem(ctx, database, item.ID, &model.ClaimRecord{ContactNumber: "777"})

	got, _ := GetItem(ctx, database, item.ID)
	if got.ClaimedBy.ContactNumber != "777" {
		t.Errorf("expected updated contact '777', got %q", got.ClaimedBy.ContactNumber)
	}
	if got.ClaimedBy.StudentName != "Ana" {
		t.Errorf("expected student name preserved, got %q", got.ClaimedBy.StudentName)
	}
	if !got.ClaimedBy.ClaimedDate.Equal(claimedDate) {
		t.Errorf("claimedDate not preserved: %v", got.ClaimedBy.ClaimedDate)
	}
}

func TestDeliverRequiresClaimedStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Not Claimed"))

	ok, err := DeliverItem(ctx, database, item.ID, nil)
	if err != nil {
		t.Fatalf("DeliverItem: %v", err)
	}
	if ok {
		t.Error("expected delivery of an available item to fail")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.StatusAvailable {
		t.Errorf("item mutated by failed delivery: %q", got.Status)
	}
}

func TestUpdateItemFieldsOnlyWhileAvailable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Editable"))

	updated := *item
	updated.Name = "Edited"
	updated.Location = "Canteen Area"
	ok, err := UpdateItemFields(ctx, database, item.ID, &updated)
	if err != nil {
		t.Fatalf("UpdateItemFields: %v", err)
	}
	if !ok {
		t.Fatal("expected update of available item to succeed")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Name != "Edited" || got.Location != "Canteen Area" {
		t.Errorf("fields not updated: %+v", got)
	}

	ClaimItem(ctx, database, item.ID, &model.ClaimRecord{
		StudentName: "Ana", RollNumber: "1", ContactNumber: "5", ClaimedDate: time.Now(),
	})

	ok, err = UpdateItemFields(ctx, database, item.ID, &updated)
	if err != nil {
		t.Fatalf("UpdateItemFields after claim: %v", err)
	}
	if ok {
		t.Error("expected update of claimed item to fail")
	}
}

func TestDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustInsert(t, database, newTestItem("Delete Me"))

	ok, err := DeleteItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to succeed")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got != nil {
		t.Error("expected item to be gone after delete")
	}

	ok, _ = DeleteItem(ctx, database, item.ID)
	if ok {
		t.Error("expected second delete to report no rows")
	}
}

func TestCountItemsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustInsert(t, database, newTestItem("One"))
	two := mustInsert(t, database, newTestItem("Two"))
	ClaimItem(ctx, database, two.ID, &model.ClaimRecord{
		StudentName: "Ana", RollNumber: "1", ContactNumber: "5", ClaimedDate: time.Now(),
	})

	counts, err := CountItemsByStatus(ctx, database)
	if err != nil {
		t.Fatalf("CountItemsByStatus: %v", err)
	}
	if counts[model.StatusAvailable] != 1 || counts[model.StatusClaimed] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
