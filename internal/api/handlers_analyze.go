package api

import (
	"net/http"

	"github.com/safebase-monitor/internal/types"
)

// identity extracts the caller's user id and tier from request headers. In
// production these come from the auth gateway in front of this service.
func identity(w http.ResponseWriter, r *http.Request) (string, types.UserTier, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return "", "", false
	}

	tierStr := r.Header.Get("X-User-Tier")
	if tierStr == "" {
		tierStr = "free"
	}
	tier := types.UserTier(tierStr)
	if tier != types.TierFree && tier != types.TierPaid {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid tier value", nil)
		return "", "", false
	}

	return userID, tier, true
}

// handleAnalyze handles POST /api/analyze - analyze a contract address or URL.
// The browser client sends the value as "input"; "target" is the canonical
// field. Both are accepted.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Input  string `json:"input"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	target := req.Target
	if target == "" {
		target = req.Input
	}
	if target == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Target required", nil)
		return
	}

	userID, tier, ok := identity(w, r)
	if !ok {
		return
	}

	result, err := s.analyzeService.Analyze(r.Context(), userID, tier, target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleAnalyzeContract handles POST /api/analyze/contract
func (s *Server) handleAnalyzeContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		Target  string `json:"target"`
		Input   string `json:"input"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	address := req.Address
	if address == "" {
		address = req.Target
	}
	if address == "" {
		address = req.Input
	}

	userID, tier, ok := identity(w, r)
	if !ok {
		return
	}

	result, err := s.analyzeService.AnalyzeContract(r.Context(), userID, tier, address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleAnalyzeURL handles POST /api/analyze/url
func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		Target string `json:"target"`
		Input  string `json:"input"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	url := req.URL
	if url == "" {
		url = req.Target
	}
	if url == "" {
		url = req.Input
	}

	userID, tier, ok := identity(w, r)
	if !ok {
		return
	}

	result, err := s.analyzeService.AnalyzeURL(r.Context(), userID, tier, url)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
