// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists paper metadata and artifact paths in SQLite and
// enforces an age limit and a byte budget over the cached artifacts.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/metrics"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// ErrNotFound is returned when an operation needs a record that is absent.
var ErrNotFound = errors.New("paper not cached")

// ErrInUse is returned by Delete when a retrieval holds a pin on the record.
var ErrInUse = errors.New("paper is being retrieved")

// Config locates the database and artifact directories and sets limits.
type Config struct {
	DBPath     string
	SourceDir  string
	TextDir    string
	MaxBytes   int64
	MaxAgeDays int
}

// ConfigFrom derives the cache configuration from application config.
func ConfigFrom(cfg types.Config) Config {
	return Config{
		DBPath:     cfg.DBPath(),
		SourceDir:  cfg.PDFDir(),
		TextDir:    cfg.MarkdownDir(),
		MaxBytes:   cfg.Papers.MaxBytes(),
		MaxAgeDays: cfg.Papers.MaxAgeDays,
	}
}

// Stats summarizes the cache.
type Stats struct {
	Count      int   `json:"count" yaml:"count"`
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes" yaml:"max_bytes"`
	MaxAgeDays int   `json:"max_age_days" yaml:"max_age_days"`
}

// PathUpdate carries the artifact paths to set. Nil fields are left as is.
type PathUpdate struct {
	Source *string
	Text   *string
}

// Store is the SQLite-backed paper cache. Mutations and eviction sweeps are
// serialized by a mutex; reads of different records may proceed through
// the database's own locking.
type Store struct {
	db  *sql.DB
	cfg Config
	now func() time.Time
	log zerolog.Logger
	mtr *metrics.Metrics

	mu   sync.Mutex
	pins map[string]int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for sweep and deletion events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics records lookups and evictions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.mtr = m }
}

// Open opens or creates the cache database and artifact directories.
func Open(cfg Config, opts ...Option) (*Store, error) {
	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.SourceDir, cfg.TextDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		cfg:  cfg,
		now:  time.Now,
		log:  zerolog.Nop(),
		pins: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			published TEXT NOT NULL DEFAULT '',
			source_path TEXT,
			text_path TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			last_accessed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_created_at ON papers(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_size ON papers(size_bytes)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SourcePath is the canonical PDF location for id.
func (s *Store) SourcePath(id string) string {
	return filepath.Join(s.cfg.SourceDir, acquire.Slug(id)+".pdf")
}

// TextPath is the canonical extracted-text location for id.
func (s *Store) TextPath(id string) string {
	return filepath.Join(s.cfg.TextDir, acquire.Slug(id)+".md")
}

const selectColumns = `id, title, abstract, authors, published, source_path, text_path,
	size_bytes, created_at, last_accessed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*types.PaperRecord, error) {
	var (
		p                 types.PaperRecord
		authors           string
		source, text      sql.NullString
		created, accessed int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Abstract, &authors, &p.Published,
		&source, &text, &p.SizeBytes, &created, &accessed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors for %s: %w", p.ID, err)
	}
	p.SourcePath = source.String
	p.TextPath = text.String
	p.CreatedAt = time.UnixMicro(created).UTC()
	p.LastAccessedAt = time.UnixMicro(accessed).UTC()
	return &p, nil
}

// Get returns the record for id, or nil when absent. A hit bumps the
// record's last access time.
func (s *Store) Get(ctx context.Context, id string) (*types.PaperRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM papers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		s.mtr.CacheLookup(false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE papers SET last_accessed_at = ? WHERE id = ?`, now.UnixMicro(), id); err != nil {
		return nil, fmt.Errorf("updating access time for %s: %w", id, err)
	}
	p.LastAccessedAt = time.UnixMicro(now.UnixMicro()).UTC()
	s.mtr.CacheLookup(true)
	return p, nil
}

// Save inserts or refreshes the metadata for id. Artifact paths and the
// creation time of an existing record are kept; the size is recomputed
// from the artifacts on disk. An eviction sweep follows the write.
func (s *Store) Save(ctx context.Context, id string, meta types.PaperMetadata) (*types.PaperRecord, error) {
	authors, err := json.Marshal(nonNil(meta.Authors))
	if err != nil {
		return nil, fmt.Errorf("encoding authors: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var source, text sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT source_path, text_path FROM papers WHERE id = ?`, id).Scan(&source, &text)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}

	now := s.now().UTC().UnixMicro()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO papers (id, title, abstract, authors, published, size_bytes, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			published = excluded.published,
			size_bytes = excluded.size_bytes,
			last_accessed_at = excluded.last_accessed_at`,
		id, meta.Title, meta.Abstract, string(authors), meta.Published,
		artifactSize(source.String, text.String), now, now)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", id, err)
	}

	p, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM papers WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reading back %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing %s: %w", id, err)
	}

	if _, err := s.sweep(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// UpdatePaths sets the non-nil artifact paths for id and recomputes the
// record size from the resulting paths in the same statement. An empty
// string clears a path. An eviction sweep follows the write.
func (s *Store) UpdatePaths(ctx context.Context, id string, u PathUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var source, text sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT source_path, text_path FROM papers WHERE id = ?`, id).Scan(&source, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", id, err)
	}

	if u.Source != nil {
		source = nullString(*u.Source)
	}
	if u.Text != nil {
		text = nullString(*u.Text)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE papers SET source_path = ?, text_path = ?, size_bytes = ? WHERE id = ?`,
		source, text, artifactSize(source.String, text.String), id); err != nil {
		return fmt.Errorf("updating paths for %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", id, err)
	}

	_, err = s.sweep(ctx)
	return err
}

// Delete removes the artifacts of id and then its row. Deleting an absent
// record is not an error; deleting a pinned one returns ErrInUse.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pins[id] > 0 {
		return fmt.Errorf("%w: %s", ErrInUse, id)
	}
	var source, text sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT source_path, text_path FROM papers WHERE id = ?`, id).Scan(&source, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", id, err)
	}
	return s.deleteRecord(ctx, id, source.String, text.String)
}

// ClearAll removes every record and its artifacts except those pinned by an
// in-flight retrieval. It returns the identifiers it skipped.
func (s *Store) ClearAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.victims(ctx, `SELECT id, source_path, text_path FROM papers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	var skipped []string
	for _, v := range all {
		if s.pins[v.id] > 0 {
			skipped = append(skipped, v.id)
			continue
		}
		if err := s.deleteRecord(ctx, v.id, v.source, v.text); err != nil {
			return skipped, err
		}
	}
	s.log.Info().Int("removed", len(all)-len(skipped)).Strs("skipped", skipped).Msg("cache cleared")
	return skipped, nil
}

// Stats returns the record count, total size, and configured limits.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{MaxBytes: s.cfg.MaxBytes, MaxAgeDays: s.cfg.MaxAgeDays}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM papers`).Scan(&st.Count, &st.TotalBytes); err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

// List returns every record, most recently accessed first. It does not
// bump access times.
func (s *Store) List(ctx context.Context) ([]types.PaperRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM papers ORDER BY last_accessed_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []types.PaperRecord
	for rows.Next() {
		p, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Pin marks id as having an artifact write in flight. Sweeps skip pinned
// records until every returned release func has been called.
func (s *Store) Pin(id string) (release func()) {
	s.mu.Lock()
	s.pins[id]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.pins[id]--; s.pins[id] <= 0 {
				delete(s.pins, id)
			}
			s.mu.Unlock()
		})
	}
}

// deleteRecord removes artifacts then the row. Callers hold s.mu.
func (s *Store) deleteRecord(ctx context.Context, id, source, text string) error {
	s.removeFiles(source, text)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

// removeFiles deletes artifacts. Failures are logged and ignored.
func (s *Store) removeFiles(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("removing artifact")
		}
	}
}

// artifactSize sums the sizes of the existing files among paths.
func artifactSize(paths ...string) int64 {
	var total int64
	for _, path := range paths {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
