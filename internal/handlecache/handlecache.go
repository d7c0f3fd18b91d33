package handlecache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB is a persistent cache of id -> handle resolutions, so repeated runs
// over the same archive skip the network for ids already resolved.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS handles (
	  user_id TEXT PRIMARY KEY,
	  handle TEXT NOT NULL,
	  resolved_at INTEGER NOT NULL
	);
	`)
	return err
}

// Put stores or replaces one resolution.
func (d *DB) Put(ctx context.Context, id, handle string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO handles(user_id, handle, resolved_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET handle=excluded.handle, resolved_at=excluded.resolved_at`,
		id, handle, time.Now().Unix())
	return err
}

// Get returns the cached handles for ids; ids with no entry are absent
// from the result.
func (d *DB) Get(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT user_id, handle FROM handles WHERE user_id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, handle string
		if err := rows.Scan(&id, &handle); err != nil {
			return nil, err
		}
		out[id] = handle
	}
	return out, rows.Err()
}
