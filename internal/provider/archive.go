package provider

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// ArchiveEntry is one curated description keyed by a normalized name fragment
type ArchiveEntry struct {
	Key         string
	Description string
	Link        string
}

// SeedEntries are loaded into an empty archive
var SeedEntries = []ArchiveEntry{
	{
		Key:         "beiaardmuseum",
		Description: "Het Stedelijk Beiaardmuseum is een voormalig museum in de Belgische stad Hasselt, dat gevestigd was in de toren van de Sint-Quintinuskathedraal.",
		Link:        "https://nl.wikipedia.org/wiki/Stedelijk_Beiaardmuseum",
	},
	{
		Key:         "stadsmus",
		Description: "Het Stadsmus (Stedelijk Museum Stellingwerff-Waerdenhof) is het stedelijk museum van Hasselt waar je de geschiedenis van de stad en haar inwoners ontdekt.",
		Link:        "https://www.visithasselt.be/nl/het-stadsmus",
	},
	{
		Key:         "het volkstehuis",
		Description: "Het Volkstehuis in Hasselt (ABVV-gebouw) is een historisch pand dat symbool staat voor de sociale geschiedenis en de arbeidersbeweging in de stad. Het biedt vandaag de dag ruimte voor ontmoeting, advies en vakbondsdiensten.",
		Link:        "https://www.volkstehuis.be/",
	},
}

const archiveSchema = `CREATE TABLE IF NOT EXISTS archive_entries (
	key         TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	link        TEXT NOT NULL DEFAULT ''
)`

// Archive is the curated local archive backed by sqlite
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive at path and seeds it when empty.
// ":memory:" gives a private in-memory archive.
func OpenArchive(ctx context.Context, path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "archive: open")
	}
	// in-memory databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "archive: create schema")
	}

	a := &Archive{db: db}
	n, err := a.count(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n == 0 {
		for _, e := range SeedEntries {
			if err := a.Put(ctx, e); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
	}
	return a, nil
}

// Close releases the database
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) Name() string {
	return model.SourceArchive
}

// Put inserts or replaces an entry. The key is normalized before storage.
func (a *Archive) Put(ctx context.Context, e ArchiveEntry) error {
	key := normalize.PoiName(e.Key)
	if key == "" {
		return eris.New("archive: empty key")
	}
	query, args, err := sq.Insert("archive_entries").
		Columns("key", "description", "link").
		Values(key, e.Description, e.Link).
		Suffix("ON CONFLICT(key) DO UPDATE SET description = excluded.description, link = excluded.link").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "archive: build insert")
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "archive: insert %s", key)
	}
	return nil
}

// Entries lists every entry ordered by key
func (a *Archive) Entries(ctx context.Context) ([]ArchiveEntry, error) {
	query, args, err := sq.Select("key", "description", "link").
		From("archive_entries").
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "archive: build select")
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "archive: query")
	}
	defer func() { _ = rows.Close() }()

	var out []ArchiveEntry
	for rows.Next() {
		var e ArchiveEntry
		if err := rows.Scan(&e.Key, &e.Description, &e.Link); err != nil {
			return nil, eris.Wrap(err, "archive: scan")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "archive: rows")
}

// Fetch matches when the normalized POI name contains an entry key
func (a *Archive) Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error) {
	name := normalize.PoiName(poi.Name)
	if name == "" {
		return nil, nil
	}
	entries, err := a.Entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.Contains(name, e.Key) {
			return &model.Signal{
				Type:       model.SignalDescription,
				Source:     a.Name(),
				Content:    e.Description,
				Link:       e.Link,
				Confidence: 1.0,
			}, nil
		}
	}
	return nil, nil
}

func (a *Archive) count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("archive_entries").ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "archive: build count")
	}
	var n int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "archive: count")
	}
	return n, nil
}
