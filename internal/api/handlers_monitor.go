package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/safebase-monitor/internal/models"
)

// handleMonitorAdd handles POST /api/monitor/add - put an address on the watchlist
func (s *Server) handleMonitorAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	result, err := s.monitorService.Add(r.Context(), userID, req.Address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  "success",
		"address": result.Address,
		"created": result.Created,
	})
}

// handleMonitorRemove handles POST /api/monitor/remove - take an address off the watchlist
func (s *Server) handleMonitorRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	if err := s.monitorService.Remove(r.Context(), userID, req.Address); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"address": req.Address,
		"removed": true,
	})
}

// handleMonitorList handles GET /api/monitor/list - list the user's watchlist
// with last snapshots and alert histories attached
func (s *Server) handleMonitorList(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	entries, err := s.monitorService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.WatchedAddress{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"addresses": entries,
		"count":     len(entries),
	})
}

// handleGetSettings handles GET /api/monitor/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	prefs, err := s.monitorService.GetSettings(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// handleUpdateSettings handles POST /api/monitor/settings. The browser client
// sends snake_case field names; both spellings are accepted.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailEnabled    bool   `json:"emailEnabled"`
		TelegramEnabled bool   `json:"telegramEnabled"`
		Email           string `json:"email"`
		TelegramID      string `json:"telegramId"`

		EmailNotifications    *bool  `json:"email_notifications"`
		TelegramNotifications *bool  `json:"telegram_notifications"`
		TelegramIDAlias       string `json:"telegram_id"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.EmailNotifications != nil {
		req.EmailEnabled = *req.EmailNotifications
	}
	if req.TelegramNotifications != nil {
		req.TelegramEnabled = *req.TelegramNotifications
	}
	if req.TelegramID == "" {
		req.TelegramID = req.TelegramIDAlias
	}

	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	prefs, err := s.monitorService.UpdateSettings(r.Context(), &models.NotificationPreferences{
		UserID:          userID,
		EmailEnabled:    req.EmailEnabled,
		TelegramEnabled: req.TelegramEnabled,
		Email:           req.Email,
		TelegramID:      req.TelegramID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"settings": prefs,
	})
}

// handleMonitorHistory handles GET /api/monitor/history/{address} - recent
// snapshots for a watched address, optionally bounded by ?from and ?to
// (RFC 3339) against the long-term archive
func (s *Server) handleMonitorHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if address == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Address parameter required", nil)
		return
	}

	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var from, to time.Time
	var err error
	if fromStr := query.Get("from"); fromStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'from' timestamp, expected RFC 3339", nil)
			return
		}
	}
	if toStr := query.Get("to"); toStr != "" {
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'to' timestamp, expected RFC 3339", nil)
			return
		}
	}

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'limit' value", nil)
			return
		}
	}

	snapshots, err := s.monitorService.History(r.Context(), userID, address, from, to, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}
