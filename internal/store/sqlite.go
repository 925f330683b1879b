package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Store backend over a local sqlite database. Leaf values are
// stored as JSON rows keyed by full path; interior reads assemble the
// subtree from the path prefix.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			path  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, path string) (any, error) {
	path = strings.Trim(path, "/")

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE path = ?`, path).Scan(&raw)
	switch {
	case err == nil:
		return decodeValue(raw)
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("failed to query %s: %w", path, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM kv WHERE path LIKE ? ESCAPE '\'`, likePrefix(path))
	if err != nil {
		return nil, fmt.Errorf("failed to query subtree %s: %w", path, err)
	}
	defer rows.Close()

	tree := make(map[string]any)
	for rows.Next() {
		var childPath, childRaw string
		if err := rows.Scan(&childPath, &childRaw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		value, err := decodeValue(childRaw)
		if err != nil {
			return nil, err
		}
		insertAt(tree, strings.TrimPrefix(childPath, path+"/"), value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtree %s: %w", path, err)
	}

	if len(tree) == 0 {
		return nil, nil
	}
	return tree, nil
}

func (s *SQLite) Set(ctx context.Context, path string, value any) error {
	path = strings.Trim(path, "/")

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// A write replaces anything previously stored below this path.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kv WHERE path = ? OR path LIKE ? ESCAPE '\'`, path, likePrefix(path)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (path, value) VALUES (?, ?)`, path, string(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return tx.Commit()
}

func (s *SQLite) Update(ctx context.Context, path string, fields map[string]any) error {
	for k, v := range fields {
		if err := s.Set(ctx, path+"/"+SanitizeKey(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, path string) error {
	path = strings.Trim(path, "/")
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE path = ? OR path LIKE ? ESCAPE '\'`, path, likePrefix(path))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, path string, value any) (string, error) {
	id := NewChildID()
	return id, s.Set(ctx, path+"/"+id, value)
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return v, nil
}

// likePrefix builds a LIKE pattern matching strict descendants of path,
// escaping the LIKE metacharacters.
func likePrefix(path string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(path)
	return escaped + "/%"
}

// insertAt places value into the nested map at the relative "/"-joined path.
func insertAt(tree map[string]any, relPath string, value any) {
	segments := strings.Split(relPath, "/")
	cur := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}
