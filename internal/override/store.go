package override

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/database"
)

// Pattern is one persisted override rule.
type Pattern struct {
	Pattern   string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Store persists override patterns across restarts.
type Store interface {
	Save(ctx context.Context, p Pattern) error
	Delete(ctx context.Context, pattern string) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context) ([]Pattern, error)
}

// SQLStore is the sqlite-backed Store.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a store over the given database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Save inserts or replaces a pattern.
func (s *SQLStore) Save(ctx context.Context, p Pattern) error {
	var expires sql.NullString
	if p.ExpiresAt != nil {
		expires = sql.NullString{
			String: p.ExpiresAt.UTC().Format(time.RFC3339Nano),
			Valid:  true,
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO override_patterns (pattern, created_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, p.Pattern, p.CreatedAt.UTC().Format(time.RFC3339Nano), expires)
	if err != nil {
		return fmt.Errorf("saving override pattern: %w", err)
	}
	return nil
}

// Delete removes one pattern.
func (s *SQLStore) Delete(ctx context.Context, pattern string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM override_patterns WHERE pattern = ?", pattern)
	if err != nil {
		return fmt.Errorf("deleting override pattern: %w", err)
	}
	return nil
}

// DeleteAll removes every pattern.
func (s *SQLStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM override_patterns")
	if err != nil {
		return fmt.Errorf("clearing override patterns: %w", err)
	}
	return nil
}

// List returns every persisted pattern.
func (s *SQLStore) List(ctx context.Context) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pattern, created_at, expires_at FROM override_patterns ORDER BY pattern")
	if err != nil {
		return nil, fmt.Errorf("listing override patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		var created string
		var expires sql.NullString
		if err := rows.Scan(&p.Pattern, &created, &expires); err != nil {
			return nil, fmt.Errorf("scanning override pattern: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if expires.Valid {
			t, err := time.Parse(time.RFC3339Nano, expires.String)
			if err == nil {
				p.ExpiresAt = &t
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
