package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelFatal, logging.FormatText)
}

func TestScore_NormalizesLegacyScale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Target != "0xabc" || req.Kind != "contract" {
			t.Errorf("unexpected request: %+v", req)
		}

		json.NewEncoder(w).Encode(scoreResponse{
			Verdict:     "Likely Scam",
			RiskScore:   0.8,
			Explanation: "risky operations detected",
			Flags:       []string{"delegatecall"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())

	result, err := client.Score(context.Background(), "0xabc", KindContract)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if result.Verdict != types.VerdictScam {
		t.Errorf("Verdict = %s, want Scam (normalized from Likely Scam)", result.Verdict)
	}
	if result.Score != 80 {
		t.Errorf("Score = %v, want 80 (scaled from 0.8)", result.Score)
	}
	if len(result.Flags) != 1 || result.Flags[0] != "delegatecall" {
		t.Errorf("Flags = %v", result.Flags)
	}
}

func TestScore_PassesThroughFullScale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Verdict: "Risky", RiskScore: 42})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())

	result, err := client.Score(context.Background(), "0xabc", KindContract)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.Score != 42 {
		t.Errorf("Score = %v, want 42", result.Score)
	}
	if result.Verdict != types.VerdictRisky {
		t.Errorf("Verdict = %s, want Risky", result.Verdict)
	}
}

func TestScore_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())

	_, err := client.Score(context.Background(), "0xabc", KindContract)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsTransient(err) {
		t.Errorf("error %v should be a transient scorer error", err)
	}
}

func TestScore_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())
	ctx := context.Background()

	var calls int
	for i := 0; i < 10; i++ {
		_, err := client.Score(ctx, "0xabc", KindContract)
		if err != nil {
			calls++
		}
	}

	if calls != 10 {
		t.Fatalf("expected all 10 calls to fail, got %d", calls)
	}
	// The last calls should be rejected by the open breaker without
	// reaching the server; every failure is still transient to callers.
	_, err := client.Score(ctx, "0xabc", KindContract)
	if !apperrors.IsTransient(err) {
		t.Errorf("open-circuit error %v should stay transient", err)
	}
}
