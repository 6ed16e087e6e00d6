// Package session is the sync layer between one client's view of an
// encounter sheet and the remote store: every action is applied locally
// first, then submitted as a partial update, while the change feed overwrites
// local state with whatever the store settles on.
package session

import (
	"context"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
)

// Store is the remote row store a session synchronizes with.
type Store interface {
	Fetch(ctx context.Context, id string) (sheet.Sheet, error)
	Update(ctx context.Context, id string, patch sheet.Patch) error
	// Subscribe delivers the full sheet on every change to the sheet with id.
	Subscribe(ctx context.Context, id string, onChange func(sheet.Sheet)) (Subscription, error)
}

// Subscription stops change delivery when closed.
type Subscription interface {
	Close() error
}

// FromSheetStore adapts a local sheet store to the session contract.
func FromSheetStore(store storage.SheetStore) Store {
	return sheetStoreAdapter{store: store}
}

type sheetStoreAdapter struct {
	store storage.SheetStore
}

func (a sheetStoreAdapter) Fetch(ctx context.Context, id string) (sheet.Sheet, error) {
	return a.store.GetSheet(ctx, id)
}

func (a sheetStoreAdapter) Update(ctx context.Context, id string, patch sheet.Patch) error {
	_, err := a.store.UpdateSheet(ctx, id, patch)
	return err
}

func (a sheetStoreAdapter) Subscribe(ctx context.Context, id string, onChange func(sheet.Sheet)) (Subscription, error) {
	return a.store.Subscribe(ctx, id, onChange)
}
