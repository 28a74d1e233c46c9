package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotSchemaVersion is stored in the meta table of every snapshot.
const SnapshotSchemaVersion = "1"

var snapshotSchema = []string{
	`CREATE TABLE meta (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	);`,
	`CREATE TABLE nodes (
		path TEXT PRIMARY KEY,
		parent TEXT,
		name TEXT NOT NULL,
		depth INTEGER NOT NULL,
		position INTEGER NOT NULL,
		has_children INTEGER NOT NULL,
		truncated INTEGER NOT NULL
	);`,
	`CREATE TABLE properties (
		path TEXT NOT NULL REFERENCES nodes(path) ON DELETE CASCADE,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		multi_valued INTEGER NOT NULL,
		PRIMARY KEY (path, name)
	);`,
	`CREATE INDEX nodes_parent ON nodes(parent, position);`,
}

// WriteSQLite stores the subtree in a fresh SQLite database at filename,
// replacing any file already there.
func WriteSQLite(ctx context.Context, filename string, root *Entry) (err error) {
	if root == nil {
		return fmt.Errorf("nothing to export")
	}
	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", filename, err)
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range snapshotSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	meta := map[string]string{
		"schema_version": SnapshotSchemaVersion,
		"root":           root.Path,
		"exported_at":    time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (k, v) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes
		(path, parent, name, depth, position, has_children, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	propStmt, err := tx.PrepareContext(ctx, `INSERT INTO properties
		(path, name, value, multi_valued) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer propStmt.Close()

	var insert func(e *Entry, parent sql.NullString, position int) error
	insert = func(e *Entry, parent sql.NullString, position int) error {
		if _, err := nodeStmt.ExecContext(ctx, e.Path, parent, e.Name, e.Depth, position, boolInt(e.HasChildren), boolInt(e.Truncated)); err != nil {
			return fmt.Errorf("insert node %s: %w", e.Path, err)
		}
		for _, name := range e.Props.Names() {
			if _, err := propStmt.ExecContext(ctx, e.Path, name, e.Props[name], boolInt(e.Props.IsMultiValued(name))); err != nil {
				return fmt.Errorf("insert property %s@%s: %w", name, e.Path, err)
			}
		}
		for i, c := range e.Children {
			if err := insert(c, sql.NullString{String: e.Path, Valid: true}, i); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(root, sql.NullString{}, 0); err != nil {
		return err
	}

	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
