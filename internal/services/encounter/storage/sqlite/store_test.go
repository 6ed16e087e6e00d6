package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetSheetRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 2, 19, 30, 0, 0, time.UTC)
	input := sheet.New("sheet-1", "camp-1")
	input.CreatedAt = now
	input.Settings = &sheet.Settings{Modified: true, Rows: []string{"ac", "health"}}
	goblin := combatant.New("c1", "Goblin", combatant.KindMonster)
	goblin.Health = combatant.Stat{Value: combatant.Int(7), Max: combatant.Int(7), Temp: combatant.Int(2)}
	goblin.Initiative = 12
	input.Rows = append(input.Rows, goblin)

	if err := store.CreateSheet(context.Background(), input); err != nil {
		t.Fatalf("create sheet: %v", err)
	}

	got, err := store.GetSheet(context.Background(), "sheet-1")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if got.CampaignID != "camp-1" {
		t.Fatalf("campaign_id = %q, want %q", got.CampaignID, "camp-1")
	}
	if got.Round != 1 || got.ActiveIndex != 0 {
		t.Fatalf("turn = %+v, want start", got.Turn())
	}
	if len(got.Rows) != 1 || got.Rows[0].Name != "Goblin" || *got.Rows[0].Health.Temp != 2 {
		t.Fatalf("rows = %+v, want goblin", got.Rows)
	}
	if got.Rows[0].DeathSaves == nil {
		t.Fatal("expected monster death saves to round trip")
	}
	if got.Settings == nil || !got.Settings.Modified || len(got.Settings.Rows) != 2 {
		t.Fatalf("settings = %+v, want modified allow-list", got.Settings)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, now)
	}
}

func TestCreateSheetReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.CreateSheet(context.Background(), sheet.New("sheet-dup", "")); err != nil {
		t.Fatalf("create initial sheet: %v", err)
	}
	err := store.CreateSheet(context.Background(), sheet.New("sheet-dup", ""))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestCreateSheetRejectsInvalidSheet(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.CreateSheet(context.Background(), sheet.New(" ", ""))
	if !apperrors.HasCode(err, apperrors.CodeSheetEmptyID) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSheetEmptyID)
	}
}

func TestGetSheetNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetSheet(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateSheetAppliesPatchAndPublishes(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.CreateSheet(ctx, sheet.New("sheet-1", "")); err != nil {
		t.Fatalf("create sheet: %v", err)
	}

	var published []sheet.Sheet
	sub, err := store.Subscribe(ctx, "sheet-1", func(s sheet.Sheet) {
		published = append(published, s)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	rows := []combatant.Combatant{combatant.New("c1", "Aria", combatant.KindPlayer)}
	updated, err := store.UpdateSheet(ctx, "sheet-1", sheet.PatchRows(rows))
	if err != nil {
		t.Fatalf("update rows: %v", err)
	}
	if len(updated.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(updated.Rows))
	}

	turn := sheet.Patch{}.WithTurn(sheet.Sheet{ActiveIndex: 0, Round: 2})
	if _, err := store.UpdateSheet(ctx, "sheet-1", turn); err != nil {
		t.Fatalf("update turn: %v", err)
	}

	got, err := store.GetSheet(ctx, "sheet-1")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if len(got.Rows) != 1 || got.Round != 2 {
		t.Fatalf("sheet = %+v, want rows kept and round 2", got)
	}
	if len(published) != 2 {
		t.Fatalf("published = %d, want 2", len(published))
	}
	if published[1].Round != 2 || len(published[1].Rows) != 1 {
		t.Fatalf("last change = %+v, want full sheet", published[1])
	}
}

func TestConcurrentUpdatesPublishInCommitOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.CreateSheet(ctx, sheet.New("sheet-1", "")); err != nil {
		t.Fatalf("create sheet: %v", err)
	}

	var (
		mu   sync.Mutex
		last sheet.Sheet
		seen int
	)
	sub, err := store.Subscribe(ctx, "sheet-1", func(s sheet.Sheet) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		seen++
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func(round int) {
			defer wg.Done()
			patch := sheet.Patch{}.WithTurn(sheet.Sheet{Round: round})
			if _, err := store.UpdateSheet(ctx, "sheet-1", patch); err != nil {
				errs <- err
			}
		}(i + 2)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("update sheet: %v", err)
	}

	stored, err := store.GetSheet(ctx, "sheet-1")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != writers {
		t.Fatalf("published = %d, want %d", seen, writers)
	}
	if last.Round != stored.Round {
		t.Fatalf("last published round = %d, stored round = %d", last.Round, stored.Round)
	}
}

func TestUpdateSheetRejectsOverCapacity(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.CreateSheet(ctx, sheet.New("sheet-1", "")); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	rows := make([]combatant.Combatant, 0, sheet.MaxRows+1)
	for i := 0; i <= sheet.MaxRows; i++ {
		rows = append(rows, combatant.New(fmt.Sprintf("c%d", i), "Rat", combatant.KindMonster))
	}
	_, err := store.UpdateSheet(ctx, "sheet-1", sheet.PatchRows(rows))
	if !apperrors.HasCode(err, apperrors.CodeSheetFull) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeSheetFull)
	}
}

func TestUpdateSheetNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.UpdateSheet(context.Background(), "missing", sheet.PatchRows(nil))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing error = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.Subscribe(context.Background(), "missing", func(sheet.Sheet) {}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("subscribe missing error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListSheetsPaginatesByCampaign(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for _, record := range []sheet.Sheet{
		sheet.New("a", "camp-1"),
		sheet.New("b", "camp-2"),
		sheet.New("c", "camp-1"),
		sheet.New("d", "camp-1"),
	} {
		if err := store.CreateSheet(ctx, record); err != nil {
			t.Fatalf("create %s: %v", record.ID, err)
		}
	}

	first, err := store.ListSheets(ctx, "camp-1", 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Sheets) != 2 || first.Sheets[0].ID != "a" || first.Sheets[1].ID != "c" {
		t.Fatalf("first page = %+v", first.Sheets)
	}
	if first.NextPageToken != "c" {
		t.Fatalf("next page token = %q, want %q", first.NextPageToken, "c")
	}

	second, err := store.ListSheets(ctx, "camp-1", 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Sheets) != 1 || second.Sheets[0].ID != "d" || second.NextPageToken != "" {
		t.Fatalf("second page = %+v token %q", second.Sheets, second.NextPageToken)
	}

	all, err := store.ListSheets(ctx, "", 10, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all.Sheets) != 4 {
		t.Fatalf("all = %d, want 4", len(all.Sheets))
	}
}

func TestStoreRespectsCanceledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetSheet(ctx, "sheet-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want %v", err, context.Canceled)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.GetSheet(context.Background(), "sheet-1"); err == nil {
		t.Fatal("expected unconfigured store error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "initiative.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
