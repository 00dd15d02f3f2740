package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/store"
)

// Store implements store.WardrobeStore using SQLite.
type Store struct {
	db *sql.DB
}

// Verify interface compliance at compile time.
var _ store.WardrobeStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wardrobe_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		season TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_wardrobe_category ON wardrobe_items(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Create(ctx context.Context, item *domain.WardrobeItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Category = strings.ToLower(strings.TrimSpace(item.Category))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wardrobe_items (id, name, category, color, season, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Category, item.Color, item.Season, item.Notes, item.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*domain.WardrobeItem, error) {
	item := &domain.WardrobeItem{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, color, season, notes, created_at
		 FROM wardrobe_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Category, &item.Color, &item.Season, &item.Notes, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wardrobe item %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) List(ctx context.Context, category string) ([]domain.WardrobeItem, error) {
	query := `SELECT id, name, category, color, season, notes, created_at FROM wardrobe_items`
	var args []any
	if category = strings.ToLower(strings.TrimSpace(category)); category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.WardrobeItem{}
	for rows.Next() {
		var item domain.WardrobeItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Color, &item.Season, &item.Notes, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wardrobe_items WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("wardrobe item %s: %w", id, store.ErrNotFound)
	}
	return nil
}
