package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// AuthorizationCode is a stored one-time code. Only its hash is kept.
type AuthorizationCode struct {
	CodeHash    string
	ClientID    string
	RedirectURI string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// CodeRepository persists outstanding authorization codes.
type CodeRepository interface {
	// Create stores a new code.
	Create(ctx context.Context, code *AuthorizationCode) error

	// Consume atomically removes and returns the code with the given hash.
	// Returns ErrCodeNotFound if it does not exist.
	Consume(ctx context.Context, codeHash string) (*AuthorizationCode, error)

	// DeleteExpired removes codes that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteCodeRepository implements CodeRepository on the authorization_codes table.
type SQLiteCodeRepository struct {
	db *sql.DB
}

// NewCodeRepository creates a SQLite-backed code repository.
func NewCodeRepository(db *sql.DB) *SQLiteCodeRepository {
	return &SQLiteCodeRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw code for storage.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a code.
func (r *SQLiteCodeRepository) Create(ctx context.Context, code *AuthorizationCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorization_codes (code_hash, client_id, redirect_uri, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		code.CodeHash, code.ClientID, code.RedirectURI,
		code.ExpiresAt.UTC().Format(time.RFC3339),
		code.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating authorization code: %w", err)
	}
	return nil
}

// Consume deletes the code and returns the deleted row in one statement, so
// two concurrent redemptions cannot both succeed.
func (r *SQLiteCodeRepository) Consume(ctx context.Context, codeHash string) (*AuthorizationCode, error) {
	var c AuthorizationCode
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`DELETE FROM authorization_codes WHERE code_hash = ?
		 RETURNING code_hash, client_id, redirect_uri, expires_at, created_at`, codeHash,
	).Scan(&c.CodeHash, &c.ClientID, &c.RedirectURI, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("consuming authorization code: %w", err)
	}

	c.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &c, nil
}

// DeleteExpired removes codes past their expiry.
func (r *SQLiteCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM authorization_codes WHERE expires_at < ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired authorization codes: %w", err)
	}
	return result.RowsAffected()
}
