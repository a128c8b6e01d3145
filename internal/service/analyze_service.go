package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/scorer"
	"github.com/safebase-monitor/internal/storage"
	"github.com/safebase-monitor/internal/types"
)

// AnalysisResult is the one-shot analysis returned to the UI.
type AnalysisResult struct {
	Target            string        `json:"target"`
	Kind              string        `json:"kind"`
	Verdict           types.Verdict `json:"verdict"`
	Score             float64       `json:"score"`
	Flags             []string      `json:"flags,omitempty"`
	Explanation       string        `json:"explanation,omitempty"`
	RemainingAnalyses int           `json:"remainingAnalyses,omitempty"`
}

// AnalyzeService performs on-demand risk analysis of contracts and URLs.
// Free-tier users get a bounded number of analyses per UTC day; paid users
// are unmetered.
type AnalyzeService struct {
	scorer scorer.RiskScorer
	quota  *storage.QuotaTracker
	logger *logging.Logger
}

// NewAnalyzeService creates a new analyze service
func NewAnalyzeService(riskScorer scorer.RiskScorer, quota *storage.QuotaTracker, logger *logging.Logger) *AnalyzeService {
	return &AnalyzeService{
		scorer: riskScorer,
		quota:  quota,
		logger: logger.WithField("component", "analyze"),
	}
}

// Analyze routes the target to contract or URL analysis: hex addresses are
// contracts, everything else is treated as a URL.
func (s *AnalyzeService) Analyze(ctx context.Context, userID string, tier types.UserTier, target string) (*AnalysisResult, error) {
	trimmed := strings.TrimSpace(target)
	if strings.HasPrefix(strings.ToLower(trimmed), "0x") {
		return s.AnalyzeContract(ctx, userID, tier, trimmed)
	}
	return s.AnalyzeURL(ctx, userID, tier, trimmed)
}

// AnalyzeContract scores a chain address.
func (s *AnalyzeService) AnalyzeContract(ctx context.Context, userID string, tier types.UserTier, address string) (*AnalysisResult, error) {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return nil, apperrors.NewInvalidAddressError(address)
	}
	normalized := strings.ToLower(strings.TrimSpace(address))
	return s.analyze(ctx, userID, tier, normalized, scorer.KindContract)
}

// AnalyzeURL scores a URL for phishing indicators.
func (s *AnalyzeService) AnalyzeURL(ctx context.Context, userID string, tier types.UserTier, url string) (*AnalysisResult, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, apperrors.NewInvalidInputError("url cannot be empty")
	}
	return s.analyze(ctx, userID, tier, trimmed, scorer.KindURL)
}

func (s *AnalyzeService) analyze(ctx context.Context, userID string, tier types.UserTier, target string, kind scorer.TargetKind) (*AnalysisResult, error) {
	remaining := 0
	if tier != types.TierPaid {
		ok, err := s.quota.Consume(ctx, userID)
		if err != nil {
			return nil, apperrors.NewStoreError("quota check", err)
		}
		if !ok {
			return nil, apperrors.NewQuotaExceededError(s.quota.Limit())
		}
		remaining, err = s.quota.Remaining(ctx, userID)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read remaining quota")
		}
	}

	result, err := s.scorer.Score(ctx, target, kind)
	if err != nil {
		return nil, err
	}

	return &AnalysisResult{
		Target:            target,
		Kind:              string(kind),
		Verdict:           result.Verdict,
		Score:             result.Score,
		Flags:             result.Flags,
		Explanation:       result.Explanation,
		RemainingAnalyses: remaining,
	}, nil
}
