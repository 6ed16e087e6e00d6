// Package storage defines persistence contracts for encounter sheets.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
)

var (
	// ErrNotFound indicates a requested sheet is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a sheet with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// SheetPage stores one page of sheets.
type SheetPage struct {
	Sheets        []sheet.Sheet
	NextPageToken string
}

// ChangeFunc receives the full sheet after every committed change.
type ChangeFunc func(sheet.Sheet)

// Subscription stops change delivery when closed.
type Subscription interface {
	Close() error
}

// SheetStore persists encounter sheets and publishes their changes.
type SheetStore interface {
	CreateSheet(ctx context.Context, s sheet.Sheet) error
	GetSheet(ctx context.Context, id string) (sheet.Sheet, error)
	// UpdateSheet applies a partial update and returns the stored sheet.
	UpdateSheet(ctx context.Context, id string, patch sheet.Patch) (sheet.Sheet, error)
	ListSheets(ctx context.Context, campaignID string, pageSize int, pageToken string) (SheetPage, error)
	// Subscribe delivers every later change to the sheet with id.
	Subscribe(ctx context.Context, id string, fn ChangeFunc) (Subscription, error)
}
