package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MetadataEntry is one key/value row of the metadata table.
type MetadataEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetMetadata retrieves a metadata row. The bool is false when the key is absent.
func (db *DB) GetMetadata(ctx context.Context, key string) (MetadataEntry, bool, error) {
	var (
		e  MetadataEntry
		ms int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM metadata WHERE key = ?`, key).Scan(&e.Key, &e.Value, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return MetadataEntry{}, false, nil
	}
	if err != nil {
		return MetadataEntry{}, false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	e.UpdatedAt = time.UnixMilli(ms)
	return e, true, nil
}

// SetMetadata upserts a metadata row stamped with the current time.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	if err := setMetadata(ctx, db, key, value, db.now()); err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func setMetadata(ctx context.Context, ex execer, key, value string, at time.Time) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, at.UnixMilli())
	return err
}

// LastUpdated returns when the resource was last successfully replaced.
// The bool is false when it never was.
func (db *DB) LastUpdated(ctx context.Context, res Resource) (time.Time, bool, error) {
	e, ok, err := db.GetMetadata(ctx, res.LastUpdatedKey())
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(e.Value, 10, 64)
	if err != nil {
		// unreadable marker: fall back to the row timestamp
		return e.UpdatedAt, true, nil
	}
	return time.UnixMilli(ms), true, nil
}
