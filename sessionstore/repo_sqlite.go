package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/browser"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_values (
	profile_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (profile_id, key)
);
CREATE INDEX IF NOT EXISTS idx_session_values_updated_at ON session_values(updated_at);
`

// SQLiteRepo stores session values in SQLite, encrypted with a key derived
// from the configured secret.
type SQLiteRepo struct {
	db     *sql.DB
	sealer *sealer
	now    func() time.Time
}

var _ Store = (*SQLiteRepo)(nil)

// SQLiteOption customises a SQLiteRepo.
type SQLiteOption func(*SQLiteRepo)

// WithClock sets the time source used to stamp writes.
func WithClock(now func() time.Time) SQLiteOption {
	return func(r *SQLiteRepo) {
		r.now = now
	}
}

// NewSQLiteRepo opens (creating if needed) the database at path.
func NewSQLiteRepo(ctx context.Context, path string, secret []byte, opts ...SQLiteOption) (*SQLiteRepo, error) {
	s, err := newSealer(secret)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps transactions serialised without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	r := &SQLiteRepo{db: db, sealer: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the database handle.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Get reads and decrypts one value.
func (r *SQLiteRepo) Get(ctx context.Context, key string) (string, bool, error) {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return "", false, err
	}

	var sealed []byte
	err = r.db.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE profile_id = ? AND key = ?`,
		profileID, key,
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[SQLiteRepo Get] query %s: %w", key, err)
	}

	value, err := r.sealer.open(profileID, key, sealed)
	if err != nil {
		return "", false, fmt.Errorf("[SQLiteRepo Get] %s: %w", key, err)
	}
	return value, true, nil
}

// Set encrypts and upserts one value.
func (r *SQLiteRepo) Set(ctx context.Context, key, value string) error {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	sealed, err := r.sealer.seal(profileID, key, value)
	if err != nil {
		return fmt.Errorf("[SQLiteRepo Set] %s: %w", key, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session_values (profile_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, profileID, key, sealed, r.now().UTC())
	if err != nil {
		return fmt.Errorf("[SQLiteRepo Set] upsert %s: %w", key, err)
	}
	return nil
}

// Remove deletes one value.
func (r *SQLiteRepo) Remove(ctx context.Context, key string) error {
	return r.Clear(ctx, []string{key})
}

// Clear deletes the given keys inside one transaction.
func (r *SQLiteRepo) Clear(ctx context.Context, keys []string) (returnErr error) {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if returnErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_values WHERE profile_id = ? AND key = ?`, profileID, k); err != nil {
			return fmt.Errorf("[SQLiteRepo Clear] delete %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[SQLiteRepo Clear] commit: %w", err)
	}
	return nil
}

// Keys lists the stored keys for the profile in ctx, sorted.
func (r *SQLiteRepo) Keys(ctx context.Context) ([]string, error) {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT key FROM session_values WHERE profile_id = ? ORDER BY key`, profileID)
	if err != nil {
		return nil, fmt.Errorf("[SQLiteRepo Keys] query: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("[SQLiteRepo Keys] scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteStaleBefore removes every profile with no value written since cutoff.
// Profiles are swept whole: dropping only the older rows of a commit could
// leave authenticated behind without the access token it vouches for.
func (r *SQLiteRepo) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM session_values WHERE profile_id IN (
			SELECT profile_id FROM session_values GROUP BY profile_id HAVING MAX(updated_at) < ?
		)
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("[SQLiteRepo DeleteStaleBefore] %w", err)
	}
	return res.RowsAffected()
}
