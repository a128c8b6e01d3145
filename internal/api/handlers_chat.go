package api

import (
	"net/http"
)

// handleChat handles POST /api/chat - forward a question about an analysis
// result to the external chat assistant
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string                 `json:"question"`
		Context  map[string]interface{} `json:"context,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Question required", nil)
		return
	}

	if _, _, ok := identity(w, r); !ok {
		return
	}

	answer, err := s.chatAssistant.Ask(r.Context(), req.Question, req.Context)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"answer": answer,
	})
}
