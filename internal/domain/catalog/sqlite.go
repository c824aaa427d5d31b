package catalog

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/okian/tastebud/internal/domain/model"
)

// Schema is the table layout read by LoadSQLite. Vectors are JSON arrays.
const Schema = `CREATE TABLE IF NOT EXISTS items (
	artist     TEXT NOT NULL,
	track      TEXT NOT NULL DEFAULT '',
	popularity INTEGER NOT NULL DEFAULT 0,
	vector     TEXT NOT NULL
)`

// LoadSQLite opens the database at path and reads every item.
func LoadSQLite(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLoad, path, err)
	}
	defer func() { _ = db.Close() }()
	return ReadSQLite(ctx, db, opts...)
}

// ReadSQLite reads every row of the items table from db.
func ReadSQLite(ctx context.Context, db *sql.DB, opts ...Option) (*Catalog, error) {
	rows, err := db.QueryContext(ctx, `SELECT artist, track, popularity, vector FROM items`)
	if err != nil {
		return nil, fmt.Errorf("%w: query items: %w", ErrLoad, err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ItemEmbedding
	for rows.Next() {
		var (
			rec record
			raw string
		)
		if err := rows.Scan(&rec.Artist, &rec.Track, &rec.Popularity, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrLoad, err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Vector); err != nil {
			return nil, fmt.Errorf("%w: vector for %s: %w", ErrLoad, rec.Artist, err)
		}
		items = append(items, rec.item())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrLoad, err)
	}
	return New(items, opts...)
}

// InsertSQLite writes items into db, creating the table if needed.
func InsertSQLite(ctx context.Context, db *sql.DB, items []model.ItemEmbedding) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (artist, track, popularity, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, it := range items {
		raw, err := json.Marshal(it.Vector)
		if err != nil {
			return fmt.Errorf("encode vector: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, it.Key.Artist, it.Key.Track, it.Popularity, string(raw)); err != nil {
			return fmt.Errorf("insert %s: %w", it.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
