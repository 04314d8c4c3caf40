package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteContainer reads arrays from a sqlite file with the tables
//
//	arrays(name TEXT PRIMARY KEY, shape TEXT, data BLOB)
//	attrs(name TEXT PRIMARY KEY, value TEXT)
//
// Attributes and array names are read at open time, array payloads on demand.
type SQLiteContainer struct {
	path  string
	names []string
	attrs map[string]string

	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLite opens an existing dataset file. It never creates one.
func OpenSQLite(ctx context.Context, path string) (*SQLiteContainer, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	db, err := sql.Open("sqlite", fileDSN(path, "mode=ro&_pragma=query_only(1)"))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &SQLiteContainer{path: path, db: db, attrs: make(map[string]string)}
	if err := c.readIndex(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// fileDSN builds a sqlite URI filename for path. Parameters in query apply to
// every connection the pool opens.
func fileDSN(path, query string) string {
	dsn := "file:" + strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(path)
	if query != "" {
		dsn += "?" + query
	}
	return dsn
}

func (c *SQLiteContainer) readIndex(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT name, value FROM attrs`)
	if err != nil {
		return fmt.Errorf("read attrs: %w", err)
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan attr: %w", err)
		}
		c.attrs[name] = value
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = c.db.QueryContext(ctx, `SELECT name FROM arrays ORDER BY name`)
	if err != nil {
		return fmt.Errorf("read array index: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan array name: %w", err)
		}
		c.names = append(c.names, name)
	}
	return rows.Err()
}

func (c *SQLiteContainer) getDB() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, errors.New("sqlite container is closed")
	}
	return c.db, nil
}

func (c *SQLiteContainer) ArrayNames() []string {
	return append([]string(nil), c.names...)
}

func (c *SQLiteContainer) Array(ctx context.Context, name string) (*Array, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	var shapeText string
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT shape, data FROM arrays WHERE name = ?`, name).Scan(&shapeText, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrArrayNotFound, name)
		}
		return nil, fmt.Errorf("read array %s: %w", name, err)
	}

	shape, err := decodeShape(shapeText)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	data, err := decodeData(blob)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	a := &Array{Shape: shape, Data: data}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	return a, nil
}

func (c *SQLiteContainer) Attr(name string) (string, bool) {
	v, ok := c.attrs[name]
	return v, ok
}

func (c *SQLiteContainer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// SQLiteWriter populates a dataset file.
type SQLiteWriter struct {
	db *sql.DB
}

// CreateSQLite opens path for writing, creating the file and schema if needed.
func CreateSQLite(ctx context.Context, path string) (*SQLiteWriter, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", fileDSN(path, ""))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteWriter{db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS arrays (
			name TEXT PRIMARY KEY,
			shape TEXT NOT NULL,
			data BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS attrs (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

func (w *SQLiteWriter) PutArray(name string, a *Array) error {
	if name == "" {
		return fmt.Errorf("array name cannot be empty")
	}
	if err := a.validate(); err != nil {
		return fmt.Errorf("array %s: %w", name, err)
	}
	shape, err := encodeShape(a.Shape)
	if err != nil {
		return err
	}

	_, err = w.db.ExecContext(context.Background(), `
		INSERT INTO arrays (name, shape, data)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			shape = excluded.shape,
			data = excluded.data
	`, name, shape, encodeData(a.Data))
	return err
}

func (w *SQLiteWriter) SetAttr(name, value string) error {
	if name == "" {
		return fmt.Errorf("attr name cannot be empty")
	}
	_, err := w.db.ExecContext(context.Background(), `
		INSERT INTO attrs (name, value)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	return err
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
