// Package store provides a SQLite-backed rag.Index. Chunk vectors are kept
// as little-endian float32 blobs and scored in Go, which keeps the schema
// portable across SQLite builds without vector extensions.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Options configures a SQLiteIndex.
type Options struct {
	// Distance is the scoring metric (default cosine).
	Distance rag.Distance
	// Dim is the expected vector length; 0 accepts whatever a build supplies.
	Dim int
	// Label is stored with every chunk row to identify this application's data.
	Label string
}

// SQLiteIndex is a rag.Index backed by a local SQLite database.
type SQLiteIndex struct {
	// db is the underlying database connection pool.
	db *sql.DB

	opts Options
}

// Open opens (or creates) a SQLiteIndex at the given path and runs the schema
// migration. The parent directory is created when missing. Use ":memory:"
// for an in-memory database in tests.
func Open(path string, opts Options) (*SQLiteIndex, error) {
	if opts.Distance == "" {
		opts.Distance = rag.DistanceCosine
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: could not create directory for %s: %w", path, err)
		}
	}
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteIndex{db: db, opts: opts}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteIndex) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS indexes (
    name      TEXT    PRIMARY KEY,
    dim       INTEGER NOT NULL,
    built_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS chunks (
    index_name  TEXT    NOT NULL,
    chunk_id    INTEGER NOT NULL,
    text        TEXT    NOT NULL,
    vector      BLOB    NOT NULL,
    label       TEXT    NOT NULL,
    PRIMARY KEY (index_name, chunk_id)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Build implements rag.Index. The delete, the inserts and the indexes row
// upsert share one transaction, so a failure rolls back to the previous
// contents.
func (s *SQLiteIndex) Build(ctx context.Context, name string, chunks []rag.Chunk) (err error) {
	const op = "store: build"
	if name == "" {
		return apperr.New(apperr.KindIndexBuild, op, "index name must not be empty")
	}
	dim, err := rag.ValidateChunks(op, chunks, s.opts.Dim)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE index_name = ?`, name); err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("delete: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (index_name, chunk_id, text, vector, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err = stmt.ExecContext(ctx, name, c.ID, c.Text, encodeVector(c.Vector), s.opts.Label); err != nil {
			return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("insert chunk %d: %w", c.ID, err))
		}
	}

	const upsert = `
INSERT INTO indexes (name, dim, built_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET dim = excluded.dim, built_at = excluded.built_at`
	if _, err = tx.ExecContext(ctx, upsert, name, dim, time.Now().Unix()); err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("record index: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Search implements rag.Index by loading the name's vectors and ranking them
// in Go.
func (s *SQLiteIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]rag.Match, error) {
	const op = "store: search"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var dim int
	err = tx.QueryRowContext(ctx, `SELECT dim FROM indexes WHERE name = ?`, name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindIndexNotFound, op, "index %q does not exist", name)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("lookup: %w", err))
	}
	if err := rag.ValidateQuery(op, vector, dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []rag.Match{}, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT chunk_id, text, vector FROM chunks WHERE index_name = ? ORDER BY chunk_id`, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var (
			c    rag.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &blob); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("scan: %w", err))
		}
		if c.Vector, err = decodeVector(blob); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("chunk %d: %w", c.ID, err))
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("rows: %w", err))
	}
	return rag.Rank(s.opts.Distance, chunks, vector, k), nil
}

// Ping verifies the database is reachable.
func (s *SQLiteIndex) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteIndex) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// encodeVector packs v as consecutive little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
