// Package service implements the business logic behind the monitoring and
// analysis APIs.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"golang.org/x/time/rate"

	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/detector"
	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/scorer"
	"github.com/safebase-monitor/internal/storage"
	"github.com/safebase-monitor/internal/types"
)

// WatchlistStore is the persistence surface the monitor service needs for
// watchlist entries and notification preferences.
type WatchlistStore interface {
	Add(ctx context.Context, userID, address string) (bool, error)
	Remove(ctx context.Context, userID, address string) (bool, error)
	List(ctx context.Context, userID string) ([]*models.WatchedAddress, error)
	Exists(ctx context.Context, userID, address string) (bool, error)
	WithEntryLock(ctx context.Context, userID, address string, fn func(tx pgx.Tx) error) (bool, error)
	UpdateLastSnapshot(ctx context.Context, tx pgx.Tx, userID, address string, snap *types.Snapshot) error
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	SetPreferences(ctx context.Context, prefs *models.NotificationPreferences) error
}

// AlertStore persists alert records inside the evaluation transaction.
type AlertStore interface {
	Insert(ctx context.Context, tx pgx.Tx, alert *models.AlertRecord) (bool, error)
	Trim(ctx context.Context, tx pgx.Tx, userID, address string, tail int) error
	ListByUser(ctx context.Context, userID string) (map[string][]models.AlertRecord, error)
}

// AlertDispatcher fans a committed alert out to the user's channels.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert *models.AlertRecord, prefs *models.NotificationPreferences) map[types.Channel]types.DeliveryOutcome
}

// SnapshotArchiver records snapshots for long-term time-series queries.
// Archiving is best effort: the monitoring pipeline never depends on it.
type SnapshotArchiver interface {
	Record(ctx context.Context, userID, address string, snap *types.Snapshot) error
	Series(ctx context.Context, userID, address string, from, to time.Time, limit int) ([]storage.ArchivePoint, error)
}

// MonitorService owns the watchlist lifecycle and the evaluation pipeline.
// Scheduled polls and the immediate check on add both go through Evaluate,
// so every code path updates history, detects changes and dispatches alerts
// identically.
type MonitorService struct {
	watchlist  WatchlistStore
	alerts     AlertStore
	history    *storage.SnapshotHistory
	archive    SnapshotArchiver
	scorer     scorer.RiskScorer
	detector   *detector.Detector
	dispatcher AlertDispatcher
	limiter    *rate.Limiter
	alertTail  int
	logger     *logging.Logger

	// inFlight serializes evaluations per (user, address). A pair already
	// being evaluated is skipped, not queued; the next poll cycle covers it.
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

// NewMonitorService creates the monitor service. archive may be nil when
// ClickHouse is not configured.
func NewMonitorService(
	cfg config.MonitorConfig,
	scorerCfg config.ScorerConfig,
	watchlist WatchlistStore,
	alerts AlertStore,
	history *storage.SnapshotHistory,
	archive SnapshotArchiver,
	riskScorer scorer.RiskScorer,
	dispatcher AlertDispatcher,
	logger *logging.Logger,
) *MonitorService {
	rps := scorerCfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	alertTail := cfg.AlertTail
	if alertTail <= 0 {
		alertTail = 100
	}

	return &MonitorService{
		watchlist:  watchlist,
		alerts:     alerts,
		history:    history,
		archive:    archive,
		scorer:     riskScorer,
		detector:   detector.New(cfg.ScoreDelta),
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		alertTail:  alertTail,
		logger:     logger.WithField("component", "monitor"),
	}
}

// AddResult reports the outcome of a watchlist add.
type AddResult struct {
	Address string `json:"address"`
	Created bool   `json:"created"`
}

// Add puts an address on the user's watchlist and kicks off its baseline
// evaluation out of band. Re-adding a watched address is a no-op.
func (s *MonitorService) Add(ctx context.Context, userID, address string) (*AddResult, error) {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	created, err := s.watchlist.Add(ctx, userID, normalized)
	if err != nil {
		return nil, apperrors.NewStoreError("watchlist add", err)
	}

	if created {
		// The first evaluation establishes the baseline snapshot without
		// blocking the add response.
		go func() {
			evalCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			evalCtx = logging.WithLogger(evalCtx, s.logger)

			if err := s.Evaluate(evalCtx, userID, normalized); err != nil {
				s.logger.WithFields(map[string]interface{}{
					"user_id": userID,
					"address": normalized,
				}).WithError(err).Warn("Baseline evaluation failed, next poll cycle will retry")
			}
		}()
	}

	return &AddResult{Address: normalized, Created: created}, nil
}

// Remove takes the address off the user's watchlist and destroys everything
// owned by the entry: alert records (cascaded in the store) and the snapshot
// history ring.
func (s *MonitorService) Remove(ctx context.Context, userID, address string) error {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	found, err := s.watchlist.Remove(ctx, userID, normalized)
	if err != nil {
		return apperrors.NewStoreError("watchlist remove", err)
	}
	if !found {
		return apperrors.NewAddressNotWatchedError(normalized)
	}

	// Deleting the history after the row is gone also wipes anything an
	// in-flight evaluation appended before it observed the removal.
	if err := s.history.Delete(ctx, userID, normalized); err != nil {
		s.logger.WithError(err).Warn("Failed to delete snapshot history on remove")
	}

	return nil
}

// List returns the user's watchlist with last snapshots and per-address
// alert records attached.
func (s *MonitorService) List(ctx context.Context, userID string) ([]*models.WatchedAddress, error) {
	entries, err := s.watchlist.List(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("watchlist list", err)
	}

	alertsByAddress, err := s.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("alert list", err)
	}

	for _, entry := range entries {
		entry.Alerts = alertsByAddress[entry.Address]
	}
	return entries, nil
}

// GetSettings returns the user's notification preferences.
func (s *MonitorService) GetSettings(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	prefs, err := s.watchlist.GetPreferences(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("get preferences", err)
	}
	return prefs, nil
}

// UpdateSettings stores the user's notification preferences, last write wins.
func (s *MonitorService) UpdateSettings(ctx context.Context, prefs *models.NotificationPreferences) (*models.NotificationPreferences, error) {
	if prefs.EmailEnabled && !strings.Contains(prefs.Email, "@") {
		return nil, apperrors.NewInvalidInputError("email channel enabled without a valid email address")
	}
	if prefs.TelegramEnabled && prefs.TelegramID == "" {
		return nil, apperrors.NewInvalidInputError("telegram channel enabled without a chat id")
	}

	if err := s.watchlist.SetPreferences(ctx, prefs); err != nil {
		return nil, apperrors.NewStoreError("set preferences", err)
	}
	return prefs, nil
}

// History returns recent snapshots for a watched address, oldest first. When
// a time range is given the long-term archive is queried instead of the
// in-memory ring.
func (s *MonitorService) History(ctx context.Context, userID, address string, from, to time.Time, limit int) ([]types.Snapshot, error) {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	watched, err := s.watchlist.Exists(ctx, userID, normalized)
	if err != nil {
		return nil, apperrors.NewStoreError("watchlist lookup", err)
	}
	if !watched {
		return nil, apperrors.NewAddressNotWatchedError(normalized)
	}

	if limit <= 0 {
		limit = 50
	}

	if !from.IsZero() || !to.IsZero() {
		if s.archive == nil {
			return nil, apperrors.NewInvalidInputError("time-range history is not available without the archive store")
		}
		if to.IsZero() {
			to = time.Now().UTC()
		}
		points, err := s.archive.Series(ctx, userID, normalized, from, to, limit)
		if err != nil {
			return nil, apperrors.NewStoreError("archive query", err)
		}
		snaps := make([]types.Snapshot, len(points))
		for i, p := range points {
			snaps[i] = p.Snapshot()
		}
		return snaps, nil
	}

	snaps, err := s.history.Recent(ctx, userID, normalized, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("history read", err)
	}
	return snaps, nil
}

// Evaluate re-checks one watchlist entry: score, compare with the previous
// snapshot, commit the new state, and dispatch an alert when the change
// warrants one. Safe to call concurrently; evaluations of the same
// (user, address) pair never interleave.
func (s *MonitorService) Evaluate(ctx context.Context, userID, address string) error {
	key := userID + ":" + strings.ToLower(address)
	if !s.acquire(key) {
		return nil
	}
	defer s.release(key)

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	result, err := s.scorer.Score(ctx, address, scorer.KindContract)
	if err != nil {
		return err
	}
	current := result.Snapshot()

	// The in-flight key serializes evaluations of this pair, so the latest
	// history entry cannot change between this read and the commit below.
	previous, err := s.history.Latest(ctx, userID, address)
	if err != nil {
		return apperrors.NewStoreError("history read", err)
	}

	message, alerting := s.detector.Detect(previous, current)

	var alert *models.AlertRecord
	var alertCreated bool

	found, err := s.watchlist.WithEntryLock(ctx, userID, address, func(tx pgx.Tx) error {
		if err := s.watchlist.UpdateLastSnapshot(ctx, tx, userID, address, current); err != nil {
			return err
		}

		if alerting {
			alert = &models.AlertRecord{
				UserID:    userID,
				Address:   address,
				CreatedAt: current.TakenAt,
				Message:   message,
				Snapshot:  *current,
			}
			created, err := s.alerts.Insert(ctx, tx, alert)
			if err != nil {
				return err
			}
			alertCreated = created
			if created {
				if err := s.alerts.Trim(ctx, tx, userID, address, s.alertTail); err != nil {
					return err
				}
			}
		}

		// Appending inside the lock window keeps the ring consistent with
		// the committed entry: a concurrent remove deletes the row first
		// and then the ring, wiping this append either way.
		return s.history.Append(ctx, userID, address, current)
	})
	if err != nil {
		return apperrors.NewStoreError("evaluation commit", err)
	}
	if !found {
		// Entry was removed while the scorer call was in flight.
		return nil
	}

	s.archiveSnapshot(userID, address, current)

	if alerting && alertCreated {
		prefs, err := s.watchlist.GetPreferences(ctx, userID)
		if err != nil {
			s.logger.WithError(err).Error("Failed to load preferences, alert delivered to log only")
			prefs = nil
		}
		s.dispatcher.Dispatch(ctx, alert, prefs)
	}

	return nil
}

func (s *MonitorService) acquire(key string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight == nil {
		s.inFlight = make(map[string]struct{})
	}
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *MonitorService) release(key string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, key)
	s.inFlightMu.Unlock()
}

func (s *MonitorService) archiveSnapshot(userID, address string, snap *types.Snapshot) {
	if s.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.Record(ctx, userID, address, snap); err != nil {
			s.logger.WithError(err).Warn("Failed to archive snapshot")
		}
	}()
}

// normalizeAddress validates and lowercases a chain address.
func normalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", apperrors.NewInvalidAddressError(trimmed)
	}
	return strings.ToLower(trimmed), nil
}
