// Package cacheserver is the durable remote cache shared by enrichment
// clients.
package cacheserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DefaultExpiry is how long an entry is served after it was written
const DefaultExpiry = 60 * 24 * time.Hour

const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
)`

// Entry is one stored value
type Entry struct {
	Key       string
	Data      json.RawMessage
	Language  string
	CreatedAt time.Time
}

// Store keeps entries in sqlite
type Store struct {
	db     *sql.DB
	expiry time.Duration
	now    func() time.Time
}

// OpenStore opens (or creates) the database at path
func OpenStore(ctx context.Context, path string, expiry time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cacheserver: open")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "cacheserver: create schema")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{db: db, expiry: expiry, now: time.Now}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a live entry. Expired entries are deleted and reported as
// missing.
func (s *Store) Get(ctx context.Context, key string) (*Entry, bool, error) {
	query, args, err := sq.Select("data", "language", "created_at").
		From("cache_entries").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, false, eris.Wrap(err, "cacheserver: build select")
	}

	var (
		data      string
		createdAt int64
		e         = Entry{Key: key}
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data, &e.Language, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cacheserver: get %s", key)
	}

	e.Data = json.RawMessage(data)
	e.CreatedAt = time.UnixMilli(createdAt)
	if s.now().Sub(e.CreatedAt) > s.expiry {
		if err := s.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return &e, true, nil
}

// Put writes an entry, replacing any previous value
func (s *Store) Put(ctx context.Context, key, language string, data json.RawMessage) error {
	query, args, err := sq.Insert("cache_entries").
		Columns("key", "data", "language", "created_at").
		Values(key, string(data), language, s.now().UnixMilli()).
		Suffix("ON CONFLICT(key) DO UPDATE SET data = excluded.data, language = excluded.language, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "cacheserver: build insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "cacheserver: put %s", key)
	}
	return nil
}

// Delete removes an entry
func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete("cache_entries").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return eris.Wrap(err, "cacheserver: build delete")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "cacheserver: delete %s", key)
	}
	return nil
}

// Purge deletes every expired entry and returns how many were removed
func (s *Store) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.expiry).UnixMilli()
	query, args, err := sq.Delete("cache_entries").Where(sq.Lt{"created_at": cutoff}).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "cacheserver: build purge")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "cacheserver: purge")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "cacheserver: purge rows")
}

// Count returns the number of stored entries, expired or not
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("cache_entries").ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "cacheserver: build count")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "cacheserver: count")
	}
	return n, nil
}
