package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/types"
)

// AlertRepository handles persistence of alert records. Records are
// append-only per address; a unique constraint on (user_id, address,
// created_at) guarantees at most one record per dedup key.
type AlertRepository struct {
	db *PostgresDB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *PostgresDB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert appends an alert record inside the evaluation transaction. A
// conflicting dedup key leaves the existing record untouched and reports
// created=false, so redelivery never duplicates the record.
func (r *AlertRepository) Insert(ctx context.Context, tx pgx.Tx, alert *models.AlertRecord) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	snapshotJSON, err := json.Marshal(alert.Snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to marshal alert snapshot: %w", err)
	}

	query := `
		INSERT INTO alerts (id, user_id, address, created_at, message, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, address, created_at) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Address,
		alert.CreatedAt,
		alert.Message,
		snapshotJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Trim keeps only the newest `tail` records for the address inside tx.
func (r *AlertRepository) Trim(ctx context.Context, tx pgx.Tx, userID, address string, tail int) error {
	query := `
		DELETE FROM alerts
		WHERE user_id = $1 AND address = $2 AND id NOT IN (
			SELECT id FROM alerts
			WHERE user_id = $1 AND address = $2
			ORDER BY created_at DESC
			LIMIT $3
		)
	`

	if _, err := tx.Exec(ctx, query, userID, address, tail); err != nil {
		return fmt.Errorf("failed to trim alerts: %w", err)
	}
	return nil
}

// ListByUser returns the user's alert records grouped by address, oldest
// first within each address.
func (r *AlertRepository) ListByUser(ctx context.Context, userID string) (map[string][]models.AlertRecord, error) {
	query := `
		SELECT id, address, created_at, message, snapshot
		FROM alerts
		WHERE user_id = $1
		ORDER BY address, created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make(map[string][]models.AlertRecord)
	for rows.Next() {
		rec := models.AlertRecord{UserID: userID}
		var snapshotJSON []byte

		if err := rows.Scan(&rec.ID, &rec.Address, &rec.CreatedAt, &rec.Message, &snapshotJSON); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		var snap types.Snapshot
		if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert snapshot: %w", err)
		}
		rec.Snapshot = snap

		alerts[rec.Address] = append(alerts[rec.Address], rec)
	}

	return alerts, rows.Err()
}
