// Package sqlite provides a SQLite-backed encounter sheet store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlitemigrate "github.com/louisbranch/initiative/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
	"github.com/louisbranch/initiative/internal/services/encounter/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists sheets in SQLite and publishes committed changes to an
// in-process feed.
type Store struct {
	sqlDB *sql.DB
	feed  *storage.Feed
	now   func() time.Time

	// updateMu keeps feed order equal to commit order.
	updateMu sync.Mutex
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite sheet store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, feed: storage.NewFeed(), now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Feed exposes the change feed the store publishes to.
func (s *Store) Feed() *storage.Feed {
	if s == nil {
		return nil
	}
	return s.feed
}

// CreateSheet inserts one sheet.
func (s *Store) CreateSheet(ctx context.Context, record sheet.Sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record = record.Normalize()
	if err := record.Validate(); err != nil {
		return err
	}

	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	updatedAt := record.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	rowsJSON, settingsJSON, err := encodeColumns(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sheets (
		   id,
		   campaign_id,
		   rows_json,
		   active_index,
		   round,
		   settings_json,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CampaignID,
		rowsJSON,
		record.ActiveIndex,
		record.Round,
		settingsJSON,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isSheetUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create sheet: %w", err)
	}
	return nil
}

// GetSheet returns one sheet by id.
func (s *Store) GetSheet(ctx context.Context, id string) (sheet.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Sheet{}, err
	}
	if s == nil || s.sqlDB == nil {
		return sheet.Sheet{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return sheet.Sheet{}, fmt.Errorf("sheet id is required")
	}

	record, err := scanSheet(s.sqlDB.QueryRowContext(ctx, selectSheetSQL+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Sheet{}, storage.ErrNotFound
		}
		return sheet.Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	return record, nil
}

// UpdateSheet applies patch to the stored sheet inside one transaction and
// publishes the result once committed. Updates are serialized through
// publish, so the last change a subscriber sees is the stored sheet.
func (s *Store) UpdateSheet(ctx context.Context, id string, patch sheet.Patch) (sheet.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Sheet{}, err
	}
	if s == nil || s.sqlDB == nil {
		return sheet.Sheet{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return sheet.Sheet{}, fmt.Errorf("sheet id is required")
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return sheet.Sheet{}, fmt.Errorf("begin update sheet: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanSheet(tx.QueryRowContext(ctx, selectSheetSQL+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Sheet{}, storage.ErrNotFound
		}
		return sheet.Sheet{}, fmt.Errorf("update sheet: %w", err)
	}
	if patch.Empty() {
		return current, nil
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return sheet.Sheet{}, err
	}
	next.UpdatedAt = s.now().UTC()
	rowsJSON, settingsJSON, err := encodeColumns(next)
	if err != nil {
		return sheet.Sheet{}, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sheets
		    SET rows_json = ?,
		        active_index = ?,
		        round = ?,
		        settings_json = ?,
		        updated_at = ?
		  WHERE id = ?`,
		rowsJSON,
		next.ActiveIndex,
		next.Round,
		settingsJSON,
		toMillis(next.UpdatedAt),
		id,
	); err != nil {
		return sheet.Sheet{}, fmt.Errorf("update sheet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return sheet.Sheet{}, fmt.Errorf("commit update sheet: %w", err)
	}

	s.feed.Publish(next)
	return next, nil
}

// ListSheets returns one page of sheets, optionally filtered by campaign.
func (s *Store) ListSheets(ctx context.Context, campaignID string, pageSize int, pageToken string) (storage.SheetPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.SheetPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SheetPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.SheetPage{}, fmt.Errorf("page size must be greater than zero")
	}
	campaignID = strings.TrimSpace(campaignID)
	pageToken = strings.TrimSpace(pageToken)

	query := selectSheetSQL + ` WHERE (? = '' OR campaign_id = ?) AND id > ? ORDER BY id ASC LIMIT ?`
	rows, err := s.sqlDB.QueryContext(ctx, query, campaignID, campaignID, pageToken, pageSize+1)
	if err != nil {
		return storage.SheetPage{}, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()

	page := storage.SheetPage{Sheets: make([]sheet.Sheet, 0, pageSize)}
	for rows.Next() {
		record, err := scanSheet(rows)
		if err != nil {
			return storage.SheetPage{}, fmt.Errorf("list sheets: %w", err)
		}
		page.Sheets = append(page.Sheets, record)
	}
	if err := rows.Err(); err != nil {
		return storage.SheetPage{}, fmt.Errorf("list sheets: %w", err)
	}
	if len(page.Sheets) > pageSize {
		page.NextPageToken = page.Sheets[pageSize-1].ID
		page.Sheets = page.Sheets[:pageSize]
	}
	return page, nil
}

// Subscribe delivers every committed change to the sheet with id.
func (s *Store) Subscribe(ctx context.Context, id string, fn storage.ChangeFunc) (storage.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	id = strings.TrimSpace(id)
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM sheets WHERE id = ?`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("subscribe sheet: %w", err)
	}
	return s.feed.Subscribe(id, fn), nil
}

const selectSheetSQL = `SELECT id, campaign_id, rows_json, active_index, round,
        settings_json, created_at, updated_at
   FROM sheets`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSheet(row rowScanner) (sheet.Sheet, error) {
	var (
		record       sheet.Sheet
		rowsJSON     string
		settingsJSON sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&rowsJSON,
		&record.ActiveIndex,
		&record.Round,
		&settingsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return sheet.Sheet{}, err
	}
	record.Rows = []combatant.Combatant{}
	if err := json.Unmarshal([]byte(rowsJSON), &record.Rows); err != nil {
		return sheet.Sheet{}, fmt.Errorf("decode rows for sheet %s: %w", record.ID, err)
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		record.Settings = &sheet.Settings{}
		if err := json.Unmarshal([]byte(settingsJSON.String), record.Settings); err != nil {
			return sheet.Sheet{}, fmt.Errorf("decode settings for sheet %s: %w", record.ID, err)
		}
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func encodeColumns(record sheet.Sheet) (string, sql.NullString, error) {
	rows := record.Rows
	if rows == nil {
		rows = []combatant.Combatant{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode rows: %w", err)
	}
	if record.Settings == nil {
		return string(rowsJSON), sql.NullString{}, nil
	}
	settingsJSON, err := json.Marshal(record.Settings)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode settings: %w", err)
	}
	return string(rowsJSON), sql.NullString{String: string(settingsJSON), Valid: true}, nil
}

func isSheetUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "sheets.id")
}

var _ storage.SheetStore = (*Store)(nil)
