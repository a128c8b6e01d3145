// Package scorer provides the client for the external risk scoring service.
// The scoring algorithm itself is opaque; this client owns the transport,
// timeouts, circuit breaking and normalization of the scorer's output.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safebase-monitor/internal/circuitbreaker"
	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/types"
)

// TargetKind tells the scorer what the input is.
type TargetKind string

const (
	// KindContract scores a chain address
	KindContract TargetKind = "contract"
	// KindURL scores a URL for phishing indicators
	KindURL TargetKind = "url"
)

// Result is the normalized scorer output.
type Result struct {
	Verdict     types.Verdict
	Score       float64 // 0-100
	Flags       []string
	Explanation string
}

// Snapshot converts the result into an immutable snapshot taken now.
func (r *Result) Snapshot() *types.Snapshot {
	return &types.Snapshot{
		TakenAt: time.Now().UTC(),
		Verdict: r.Verdict,
		Score:   r.Score,
		Flags:   r.Flags,
	}
}

// RiskScorer is the capability the monitoring core consumes.
type RiskScorer interface {
	Score(ctx context.Context, target string, kind TargetKind) (*Result, error)
}

// Client calls the external scorer over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logging.Logger
}

// NewClient creates a scorer client with per-call timeout and circuit breaking
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("scorer"), logger),
		logger:     logger.WithField("component", "scorer"),
	}
}

// scoreRequest is the wire request to the scorer.
type scoreRequest struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// scoreResponse mirrors the scorer's wire response. Scores may come on a
// 0-1 scale and verdicts may use the richer four-category labels.
type scoreResponse struct {
	Verdict     string   `json:"verdict"`
	RiskScore   float64  `json:"risk_score"`
	Explanation string   `json:"explanation"`
	Flags       []string `json:"flags"`
}

// Score evaluates one target. Transport failures, timeouts and 5xx
// responses surface as transient scorer errors so callers retry on the
// next poll cycle instead of treating them as results.
func (c *Client) Score(ctx context.Context, target string, kind TargetKind) (*Result, error) {
	var result *Result

	err := c.breaker.Execute(ctx, func() error {
		r, err := c.doScore(ctx, target, kind)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, apperrors.NewScorerUnavailableError(err)
	}

	return result, nil
}

func (c *Client) doScore(ctx context.Context, target string, kind TargetKind) (*Result, error) {
	body, err := json.Marshal(scoreRequest{Target: target, Kind: string(kind)})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	url := c.baseURL + "/score"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var wire scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}

	result := normalize(&wire)

	c.logger.WithFields(map[string]interface{}{
		"target":   target,
		"kind":     string(kind),
		"verdict":  string(result.Verdict),
		"score":    result.Score,
		"duration": time.Since(start).String(),
	}).Debug("Scorer call completed")

	return result, nil
}

// normalize maps the scorer's wire shape onto the three-category verdict
// and the 0-100 score scale.
func normalize(wire *scoreResponse) *Result {
	score := wire.RiskScore
	if score <= 1.0 {
		// Legacy scorer variant reports 0-1
		score = score * 100
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Result{
		Verdict:     types.NormalizeVerdict(wire.Verdict),
		Score:       score,
		Flags:       wire.Flags,
		Explanation: wire.Explanation,
	}
}
