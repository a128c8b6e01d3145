package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/safebase-monitor/internal/types"
)

// ArchivePoint is one point of the activity time-series served to the UI.
type ArchivePoint struct {
	TakenAt time.Time     `json:"takenAt"`
	Verdict types.Verdict `json:"verdict"`
	Score   float64       `json:"score"`
	Flags   []string      `json:"flags,omitempty"`
}

// Snapshot converts the point back into the snapshot it was archived from.
func (p ArchivePoint) Snapshot() types.Snapshot {
	return types.Snapshot{
		TakenAt: p.TakenAt,
		Verdict: p.Verdict,
		Score:   p.Score,
		Flags:   p.Flags,
	}
}

// SnapshotArchiveRepository stores every snapshot in ClickHouse without the
// bound the Redis ring enforces, feeding the per-address activity chart.
// Writes are best-effort: an archive failure never fails an evaluation.
type SnapshotArchiveRepository struct {
	db *ClickHouseDB
}

// NewSnapshotArchiveRepository creates a new snapshot archive repository
func NewSnapshotArchiveRepository(db *ClickHouseDB) *SnapshotArchiveRepository {
	return &SnapshotArchiveRepository{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func (r *SnapshotArchiveRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS snapshot_archive (
			user_id  String,
			address  String,
			taken_at DateTime64(3, 'UTC'),
			verdict  LowCardinality(String),
			score    Float64,
			flags    Array(String)
		) ENGINE = MergeTree()
		ORDER BY (user_id, address, taken_at)
	`

	if err := r.db.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create snapshot_archive table: %w", err)
	}
	return nil
}

// Record appends one snapshot to the archive.
func (r *SnapshotArchiveRepository) Record(ctx context.Context, userID, address string, snap *types.Snapshot) error {
	query := `
		INSERT INTO snapshot_archive (user_id, address, taken_at, verdict, score, flags)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	err := r.db.Conn().Exec(ctx, query,
		userID,
		address,
		snap.TakenAt,
		string(snap.Verdict),
		snap.Score,
		snap.Flags,
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// Series returns the address's snapshots within [from, to], oldest first,
// capped at limit points.
func (r *SnapshotArchiveRepository) Series(ctx context.Context, userID, address string, from, to time.Time, limit int) ([]ArchivePoint, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT taken_at, verdict, score, flags
		FROM snapshot_archive
		WHERE user_id = $1 AND address = $2 AND taken_at >= $3 AND taken_at <= $4
		ORDER BY taken_at
		LIMIT $5
	`

	rows, err := r.db.Conn().Query(ctx, query, userID, address, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot series: %w", err)
	}
	defer rows.Close()

	var points []ArchivePoint
	for rows.Next() {
		var p ArchivePoint
		var verdict string
		if err := rows.Scan(&p.TakenAt, &verdict, &p.Score, &p.Flags); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot point: %w", err)
		}
		p.Verdict = types.Verdict(verdict)
		points = append(points, p)
	}

	return points, rows.Err()
}
