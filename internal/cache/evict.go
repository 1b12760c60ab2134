// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Evicted lists the identifiers removed by one sweep, by reason.
type Evicted struct {
	Age  []string `json:"age" yaml:"age"`
	Size []string `json:"size" yaml:"size"`
}

// Total returns the number of evicted records.
func (e Evicted) Total() int {
	return len(e.Age) + len(e.Size)
}

// Cleanup runs the eviction sweep: first every record older than the age
// limit, then the largest records until the total fits the byte budget.
func (s *Store) Cleanup(ctx context.Context) (Evicted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(ctx)
}

// sweep implements Cleanup. Callers hold s.mu.
func (s *Store) sweep(ctx context.Context) (Evicted, error) {
	var ev Evicted

	cutoff := s.now().UTC().Add(-time.Duration(s.cfg.MaxAgeDays) * 24 * time.Hour)
	victims, err := s.victims(ctx,
		`SELECT id, source_path, text_path FROM papers WHERE created_at < ? ORDER BY created_at, id`,
		cutoff.UnixMicro())
	if err != nil {
		return ev, fmt.Errorf("selecting expired records: %w", err)
	}
	for _, v := range victims {
		if s.pins[v.id] > 0 {
			continue
		}
		if err := s.deleteRecord(ctx, v.id, v.source, v.text); err != nil {
			return ev, err
		}
		ev.Age = append(ev.Age, v.id)
		s.log.Info().Str("paper_id", v.id).Time("cutoff", cutoff).Msg("evicted expired paper")
	}

	var total int64
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM papers`).Scan(&count, &total); err != nil {
		return ev, fmt.Errorf("reading cache size: %w", err)
	}

	if total > s.cfg.MaxBytes {
		candidates, err := s.victims(ctx,
			`SELECT id, source_path, text_path, size_bytes FROM papers
			ORDER BY size_bytes DESC, created_at ASC, id ASC`)
		if err != nil {
			return ev, fmt.Errorf("selecting records by size: %w", err)
		}
		for _, v := range candidates {
			if total <= s.cfg.MaxBytes {
				break
			}
			if s.pins[v.id] > 0 {
				continue
			}
			if err := s.deleteRecord(ctx, v.id, v.source, v.text); err != nil {
				return ev, err
			}
			total -= v.size
			count--
			ev.Size = append(ev.Size, v.id)
			s.log.Info().Str("paper_id", v.id).Int64("size_bytes", v.size).
				Int64("remaining_bytes", total).Msg("evicted paper over budget")
		}
	}

	s.mtr.Evicted("age", len(ev.Age))
	s.mtr.Evicted("size", len(ev.Size))
	s.mtr.CacheSize(count, total)
	return ev, nil
}

type victim struct {
	id           string
	source, text string
	size         int64
}

// victims loads candidate rows fully before any deletion so the result set
// is closed while rows are removed.
func (s *Store) victims(ctx context.Context, query string, args ...any) ([]victim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []victim
	for rows.Next() {
		var (
			v            victim
			source, text sql.NullString
		)
		dest := []any{&v.id, &source, &text}
		if len(cols) > 3 {
			dest = append(dest, &v.size)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		v.source, v.text = source.String, text.String
		out = append(out, v)
	}
	return out, rows.Err()
}
