package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/service"
	"github.com/safebase-monitor/internal/types"
)

const testAddr = "0x00000000000000000000000000000000deadbeef"

type fakeAnalyzeService struct {
	result *service.AnalysisResult
	err    error
}

func (f *fakeAnalyzeService) Analyze(_ context.Context, _ string, _ types.UserTier, target string) (*service.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Target = target
	return &res, nil
}

func (f *fakeAnalyzeService) AnalyzeContract(ctx context.Context, userID string, tier types.UserTier, address string) (*service.AnalysisResult, error) {
	return f.Analyze(ctx, userID, tier, address)
}

func (f *fakeAnalyzeService) AnalyzeURL(ctx context.Context, userID string, tier types.UserTier, url string) (*service.AnalysisResult, error) {
	return f.Analyze(ctx, userID, tier, url)
}

type fakeMonitorService struct {
	watched map[string]bool
	prefs   *models.NotificationPreferences
	err     error
}

func newFakeMonitorService() *fakeMonitorService {
	return &fakeMonitorService{watched: make(map[string]bool)}
}

func (f *fakeMonitorService) Add(_ context.Context, _, address string) (*service.AddResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	created := !f.watched[address]
	f.watched[address] = true
	return &service.AddResult{Address: address, Created: created}, nil
}

func (f *fakeMonitorService) Remove(_ context.Context, _, address string) error {
	if f.err != nil {
		return f.err
	}
	if !f.watched[address] {
		return apperrors.NewAddressNotWatchedError(address)
	}
	delete(f.watched, address)
	return nil
}

func (f *fakeMonitorService) List(_ context.Context, userID string) ([]*models.WatchedAddress, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.WatchedAddress
	for addr := range f.watched {
		out = append(out, &models.WatchedAddress{Address: addr, UserID: userID})
	}
	return out, nil
}

func (f *fakeMonitorService) GetSettings(_ context.Context, userID string) (*models.NotificationPreferences, error) {
	if f.prefs != nil {
		return f.prefs, nil
	}
	return &models.NotificationPreferences{UserID: userID}, nil
}

func (f *fakeMonitorService) UpdateSettings(_ context.Context, prefs *models.NotificationPreferences) (*models.NotificationPreferences, error) {
	if prefs.EmailEnabled && prefs.Email == "" {
		return nil, apperrors.NewInvalidInputError("email channel enabled without a valid email address")
	}
	f.prefs = prefs
	return prefs, nil
}

func (f *fakeMonitorService) History(_ context.Context, _, address string, _, _ time.Time, _ int) ([]types.Snapshot, error) {
	if !f.watched[address] {
		return nil, apperrors.NewAddressNotWatchedError(address)
	}
	return []types.Snapshot{{Verdict: types.VerdictSafe, Score: 10}}, nil
}

type fakeChatAssistant struct {
	answer string
	err    error
}

func (f *fakeChatAssistant) Ask(_ context.Context, _ string, _ map[string]interface{}) (string, error) {
	return f.answer, f.err
}

func newTestServer(analyze AnalyzeServiceInterface, monitor MonitorServiceInterface, chatSvc ChatAssistantInterface) *Server {
	return NewServer(
		&ServerConfig{
			Host:        "127.0.0.1",
			Port:        "0",
			FreeTierRPS: 1000,
			PaidTierRPS: 1000,
		},
		analyze,
		monitor,
		chatSvc,
		nil,
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)
}

func doRequest(s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func authHeaders() map[string]string {
	return map[string]string{"X-User-ID": "user-1", "X-User-Tier": "free"}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp["status"])
}

func TestAnalyzeRequiresUserID(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{result: &service.AnalysisResult{Verdict: types.VerdictSafe}}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/analyze", map[string]string{"target": testAddr}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeSuccess(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{result: &service.AnalysisResult{
		Kind:    "contract",
		Verdict: types.VerdictRisky,
		Score:   55,
		Flags:   []string{"unverified_source"},
	}}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/analyze", map[string]string{"target": testAddr}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, types.VerdictRisky, resp.Verdict)
	require.Equal(t, testAddr, resp.Target)
}

func TestAnalyzeAcceptsInputFieldName(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{result: &service.AnalysisResult{
		Kind:    "contract",
		Verdict: types.VerdictSafe,
	}}, newFakeMonitorService(), &fakeChatAssistant{})

	// The browser client posts the value as "input" rather than "target".
	rec := doRequest(s, "POST", "/api/analyze", map[string]string{"input": testAddr}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, testAddr, resp.Target)
}

func TestAnalyzeQuotaExceededMapsTo403(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{err: apperrors.NewQuotaExceededError(3)}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/analyze", map[string]string{"target": testAddr}, authHeaders())
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBufferString("{not json"))
	for k, v := range authHeaders() {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorAddCreatedAndIdempotent(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/monitor/add", map[string]string{"address": testAddr}, authHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, "POST", "/api/monitor/add", map[string]string{"address": testAddr}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string `json:"status"`
		Created bool   `json:"created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.False(t, resp.Created)
}

func TestMonitorRemoveUnknownAddress(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/monitor/remove", map[string]string{"address": testAddr}, authHeaders())
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp.Status)
	require.Equal(t, "ADDRESS_NOT_WATCHED", resp.Error.Code)
}

func TestMonitorListEmpty(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "GET", "/api/monitor/list", nil, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Addresses []*models.WatchedAddress `json:"addresses"`
		Count     int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Zero(t, resp.Count)
	require.NotNil(t, resp.Addresses)
}

func TestMonitorSettingsRoundTrip(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/monitor/settings", map[string]interface{}{
		"emailEnabled": true,
		"email":        "user@example.com",
	}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, "GET", "/api/monitor/settings", nil, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs models.NotificationPreferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	require.True(t, prefs.EmailEnabled)
	require.Equal(t, "user@example.com", prefs.Email)
}

func TestMonitorSettingsAcceptsSnakeCaseFields(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	// The browser client posts snake_case field names.
	rec := doRequest(s, "POST", "/api/monitor/settings", map[string]interface{}{
		"email_notifications":    true,
		"telegram_notifications": true,
		"email":                  "user@example.com",
		"telegram_id":            "12345",
	}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)

	rec = doRequest(s, "GET", "/api/monitor/settings", nil, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs models.NotificationPreferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	require.True(t, prefs.EmailEnabled)
	require.True(t, prefs.TelegramEnabled)
	require.Equal(t, "12345", prefs.TelegramID)
}

func TestMonitorSettingsValidation(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/monitor/settings", map[string]interface{}{
		"emailEnabled": true,
	}, authHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorHistoryRequiresWatchedAddress(t *testing.T) {
	monitor := newFakeMonitorService()
	s := newTestServer(&fakeAnalyzeService{}, monitor, &fakeChatAssistant{})

	rec := doRequest(s, "GET", "/api/monitor/history/"+testAddr, nil, authHeaders())
	require.Equal(t, http.StatusNotFound, rec.Code)

	monitor.watched[testAddr] = true
	rec = doRequest(s, "GET", "/api/monitor/history/"+testAddr, nil, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMonitorHistoryRejectsBadTimestamps(t *testing.T) {
	monitor := newFakeMonitorService()
	monitor.watched[testAddr] = true
	s := newTestServer(&fakeAnalyzeService{}, monitor, &fakeChatAssistant{})

	rec := doRequest(s, "GET", "/api/monitor/history/"+testAddr+"?from=yesterday", nil, authHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatForwardsAnswer(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{answer: "That contract mints to the owner."})

	rec := doRequest(s, "POST", "/api/chat", map[string]interface{}{
		"question": "Why is this risky?",
		"context":  map[string]interface{}{"verdict": "Risky"},
	}, authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "That contract mints to the owner.", resp["answer"])
}

func TestChatRequiresQuestion(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "POST", "/api/chat", map[string]interface{}{}, authHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	s := NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", FreeTierRPS: 1, PaidTierRPS: 1000},
		&fakeAnalyzeService{},
		newFakeMonitorService(),
		&fakeChatAssistant{},
		nil,
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)

	// Burst allows a few requests; hammering past it must return 429.
	var exceeded bool
	for i := 0; i < 20; i++ {
		rec := doRequest(s, "GET", "/api/monitor/list", nil, authHeaders())
		if rec.Code == http.StatusTooManyRequests {
			exceeded = true
			break
		}
	}
	require.True(t, exceeded, "rate limit never kicked in")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	req := httptest.NewRequest("OPTIONS", "/api/monitor/list", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowedCarriesCORSHeaders(t *testing.T) {
	s := newTestServer(&fakeAnalyzeService{}, newFakeMonitorService(), &fakeChatAssistant{})

	rec := doRequest(s, "GET", "/api/monitor/add", nil, authHeaders())
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
