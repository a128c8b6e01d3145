package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/types"
)

// WatchPair identifies one (user, address) entry for the poll scheduler.
type WatchPair struct {
	UserID  string
	Address string
}

// WatchlistRepository handles persistence of per-user watchlists and
// notification preferences. Mutations on one user's entries are serialized
// by row locks; different users never block each other.
type WatchlistRepository struct {
	db *PostgresDB
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *PostgresDB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add registers an address on the user's watchlist. Adding an address that is
// already watched is a no-op; the return value reports whether a new entry
// was created.
func (r *WatchlistRepository) Add(ctx context.Context, userID, address string) (bool, error) {
	query := `
		INSERT INTO watchlist (user_id, address, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, address) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, userID, address, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Remove deletes the watchlist entry together with its alert records (ON
// DELETE CASCADE). Returns false when the address was not watched.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, address string) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND address = $2`,
		userID, address,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist entry: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// List returns all watched addresses for a user, most recently added first.
// Alert records are attached separately by the caller.
func (r *WatchlistRepository) List(ctx context.Context, userID string) ([]*models.WatchedAddress, error) {
	query := `
		SELECT address, added_at, last_snapshot
		FROM watchlist
		WHERE user_id = $1
		ORDER BY added_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	var entries []*models.WatchedAddress
	for rows.Next() {
		entry := &models.WatchedAddress{UserID: userID}
		var snapshotJSON []byte

		if err := rows.Scan(&entry.Address, &entry.AddedAt, &snapshotJSON); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}

		if len(snapshotJSON) > 0 {
			var snap types.Snapshot
			if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
			}
			entry.LastSnapshot = &snap
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Exists reports whether the address is on the user's watchlist.
func (r *WatchlistRepository) Exists(ctx context.Context, userID, address string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watchlist WHERE user_id = $1 AND address = $2)`,
		userID, address,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist entry: %w", err)
	}
	return exists, nil
}

// ListAll enumerates every currently watched (user, address) pair. Used by
// the poll scheduler at the start of each cycle.
func (r *WatchlistRepository) ListAll(ctx context.Context) ([]WatchPair, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT user_id, address FROM watchlist ORDER BY user_id, address`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate watchlist: %w", err)
	}
	defer rows.Close()

	var pairs []WatchPair
	for rows.Next() {
		var p WatchPair
		if err := rows.Scan(&p.UserID, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist pair: %w", err)
		}
		pairs = append(pairs, p)
	}

	return pairs, rows.Err()
}

// WithEntryLock runs fn inside a transaction that holds a row lock on the
// watchlist entry. Returns found=false without calling fn when the entry no
// longer exists, in which case an in-flight evaluation result must be
// discarded. The transaction commits only when fn returns nil.
func (r *WatchlistRepository) WithEntryLock(ctx context.Context, userID, address string, fn func(tx pgx.Tx) error) (bool, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	found, err := r.lockEntry(ctx, tx, userID, address)
	if err != nil || !found {
		return found, err
	}

	if err := fn(tx); err != nil {
		return true, err
	}

	if err := tx.Commit(ctx); err != nil {
		return true, fmt.Errorf("failed to commit evaluation: %w", err)
	}
	return true, nil
}

// lockEntry takes a row lock on the watchlist entry inside tx. Returns false
// when the entry no longer exists.
func (r *WatchlistRepository) lockEntry(ctx context.Context, tx pgx.Tx, userID, address string) (bool, error) {
	var one int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM watchlist WHERE user_id = $1 AND address = $2 FOR UPDATE`,
		userID, address,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock watchlist entry: %w", err)
	}
	return true, nil
}

// UpdateLastSnapshot records the most recent snapshot on the entry inside tx.
func (r *WatchlistRepository) UpdateLastSnapshot(ctx context.Context, tx pgx.Tx, userID, address string, snap *types.Snapshot) error {
	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE watchlist SET last_snapshot = $3 WHERE user_id = $1 AND address = $2`,
		userID, address, snapshotJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update last snapshot: %w", err)
	}
	return nil
}

// GetPreferences retrieves the user's notification preferences. A user that
// never saved settings gets the zero (all channels off) preferences.
func (r *WatchlistRepository) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	query := `
		SELECT user_id, email_enabled, telegram_enabled, email, telegram_id, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`

	var prefs models.NotificationPreferences
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.EmailEnabled,
		&prefs.TelegramEnabled,
		&prefs.Email,
		&prefs.TelegramID,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.NotificationPreferences{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &prefs, nil
}

// SetPreferences stores the user's notification preferences, last write wins.
func (r *WatchlistRepository) SetPreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO notification_preferences (user_id, email_enabled, telegram_enabled, email, telegram_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			telegram_enabled = EXCLUDED.telegram_enabled,
			email = EXCLUDED.email,
			telegram_id = EXCLUDED.telegram_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		prefs.UserID,
		prefs.EmailEnabled,
		prefs.TelegramEnabled,
		prefs.Email,
		prefs.TelegramID,
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set preferences: %w", err)
	}

	return nil
}
