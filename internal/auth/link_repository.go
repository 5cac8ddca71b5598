package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Link is the provider token triple obtained through AcceptGrant.
type Link struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// LinkRepository persists the single provider link.
type LinkRepository interface {
	// Get returns the stored link or ErrLinkNotFound.
	Get(ctx context.Context) (*Link, error)

	// Save replaces the stored link.
	Save(ctx context.Context, link *Link) error
}

// SQLiteLinkRepository implements LinkRepository on the provider_link table.
type SQLiteLinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a SQLite-backed link repository.
func NewLinkRepository(db *sql.DB) *SQLiteLinkRepository {
	return &SQLiteLinkRepository{db: db}
}

// Get returns the stored link.
func (r *SQLiteLinkRepository) Get(ctx context.Context) (*Link, error) {
	var l Link
	var expiresAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, updated_at FROM provider_link WHERE id = 1`,
	).Scan(&l.AccessToken, &l.RefreshToken, &expiresAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("getting provider link: %w", err)
	}

	l.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &l, nil
}

// Save upserts the link.
func (r *SQLiteLinkRepository) Save(ctx context.Context, link *Link) error {
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO provider_link (id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		link.AccessToken, link.RefreshToken,
		link.ExpiresAt.UTC().Format(time.RFC3339),
		link.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving provider link: %w", err)
	}
	return nil
}
