// Package sqlite provides a persistent MetadataStore backed by an embedded
// SQLite database (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

// MetadataStore implements memory.MetadataStore on SQLite.
// database/sql serializes access per connection, so the store is safe for
// concurrent use; WAL mode keeps readers off the writer's lock.
type MetadataStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the store.
type Option func(*MetadataStore)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MetadataStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at dbPath and runs migrations.
func Open(dbPath string, opts ...Option) (*MetadataStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &MetadataStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *MetadataStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		ns               TEXT NOT NULL,
		content          TEXT NOT NULL,
		type             TEXT NOT NULL,
		importance       REAL NOT NULL,
		decay_factor     REAL NOT NULL DEFAULT 1.0,
		access_count     INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		last_accessed_at TEXT,
		metadata         TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_ns ON memories(ns);
	CREATE INDEX IF NOT EXISTS idx_memories_ns_type ON memories(ns, type);
	CREATE INDEX IF NOT EXISTS idx_memories_decay ON memories(decay_factor);
	`
	_, err := s.db.Exec(schema)
	return err
}

const columns = `id, ns, content, type, importance, decay_factor, access_count, created_at, last_accessed_at, metadata`

func (s *MetadataStore) Save(ctx context.Context, r *memory.MemoryRecord) error {
	metaJSON, err := marshalMetadata(r.Metadata)
	if err != nil {
		return err
	}
	var lastAccessed *string
	if !r.LastAccessedAt.IsZero() {
		v := r.LastAccessedAt.UTC().Format(time.RFC3339Nano)
		lastAccessed = &v
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.NamespacePath, r.Content, string(r.Type), r.Importance,
		r.DecayFactor, r.AccessCount, r.CreatedAt.UTC().Format(time.RFC3339Nano),
		lastAccessed, metaJSON)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *MetadataStore) SaveAll(ctx context.Context, records []*memory.MemoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range records {
		metaJSON, err := marshalMetadata(r.Metadata)
		if err != nil {
			return err
		}
		var lastAccessed *string
		if !r.LastAccessedAt.IsZero() {
			v := r.LastAccessedAt.UTC().Format(time.RFC3339Nano)
			lastAccessed = &v
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO memories (`+columns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.NamespacePath, r.Content, string(r.Type), r.Importance,
			r.DecayFactor, r.AccessCount, r.CreatedAt.UTC().Format(time.RFC3339Nano),
			lastAccessed, metaJSON)
		if err != nil {
			return fmt.Errorf("insert memory %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *MetadataStore) FindByID(ctx context.Context, id string) (*memory.MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM memories WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	return r, err
}

func (s *MetadataStore) FindByNamespace(ctx context.Context, ns memory.Namespace, filter *memory.SearchFilter) ([]*memory.MemoryRecord, error) {
	// Type/importance/decay narrowing happens in SQL; time bounds are
	// checked in Go via filter.Matches to keep timestamp comparison in one
	// place.
	where := []string{"ns = ?"}
	args := []any{ns.Path()}
	if filter != nil {
		if len(filter.Types) > 0 {
			placeholders := strings.Repeat("?,", len(filter.Types))
			where = append(where, fmt.Sprintf("type IN (%s)", placeholders[:len(placeholders)-1]))
			for _, t := range filter.Types {
				args = append(args, string(t))
			}
		}
		if filter.MinImportance > 0 {
			where = append(where, "importance >= ?")
			args = append(args, filter.MinImportance)
		}
		if filter.MinDecayFactor > 0 {
			where = append(where, "decay_factor >= ?")
			args = append(args, filter.MinDecayFactor)
		}
	}
	records, err := s.query(ctx,
		`SELECT `+columns+` FROM memories WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MetadataStore) FindAll(ctx context.Context) ([]*memory.MemoryRecord, error) {
	return s.query(ctx, `SELECT `+columns+` FROM memories`)
}

func (s *MetadataStore) FindDecayed(ctx context.Context, ns memory.Namespace, threshold float64) ([]*memory.MemoryRecord, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM memories WHERE ns = ? AND decay_factor < ?`,
		ns.Path(), threshold)
}

func (s *MetadataStore) FindAllDecayed(ctx context.Context, threshold float64) ([]*memory.MemoryRecord, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM memories WHERE decay_factor < ?`, threshold)
}

func (s *MetadataStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	return err
}

func (s *MetadataStore) DeleteByNamespace(ctx context.Context, ns memory.Namespace) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE ns = ?`, ns.Path())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *MetadataStore) RecordAccess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func (s *MetadataStore) UpdateDecayFactor(ctx context.Context, id string, factor float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET decay_factor = ? WHERE id = ?`, factor, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func (s *MetadataStore) Count(ctx context.Context, ns memory.Namespace) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE ns = ?`, ns.Path()).Scan(&n)
	return n, err
}

func (s *MetadataStore) CountByType(ctx context.Context, ns memory.Namespace) (map[memory.MemoryType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM memories WHERE ns = ? GROUP BY type`, ns.Path())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[memory.MemoryType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[memory.MemoryType(t)] = n
	}
	return out, rows.Err()
}

func (s *MetadataStore) Close() error {
	return s.db.Close()
}

func (s *MetadataStore) query(ctx context.Context, q string, args ...any) ([]*memory.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*memory.MemoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*memory.MemoryRecord, error) {
	var r memory.MemoryRecord
	var typ, createdAt string
	var lastAccessed, metaJSON sql.NullString
	err := row.Scan(&r.ID, &r.NamespacePath, &r.Content, &typ, &r.Importance,
		&r.DecayFactor, &r.AccessCount, &createdAt, &lastAccessed, &metaJSON)
	if err != nil {
		return nil, err
	}
	r.Type = memory.MemoryType(typ)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if lastAccessed.Valid {
		r.LastAccessedAt, _ = time.Parse(time.RFC3339Nano, lastAccessed.String)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
	if ns, err := memory.ParseNamespace(r.NamespacePath); err == nil {
		r.Namespace = ns
	}
	return &r, nil
}

func marshalMetadata(meta map[string]any) (*string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}
