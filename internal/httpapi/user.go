package httpapi

import (
	"net/http"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

type setUserRequest struct {
	Username string `json:"username" validate:"required"`
}

type preferencesRequest struct {
	Theme         *string `json:"theme,omitempty" validate:"omitnil,oneof=light dark"`
	VoiceEnabled  *bool   `json:"voiceEnabled,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
	AutoRefresh   *bool   `json:"autoRefresh,omitempty"`
}

func (p preferencesRequest) patch() domain.PreferencesPatch {
	out := domain.PreferencesPatch{
		VoiceEnabled:  p.VoiceEnabled,
		Notifications: p.Notifications,
		AutoRefresh:   p.AutoRefresh,
	}
	if p.Theme != nil {
		t := domain.Theme(*p.Theme)
		out.Theme = &t
	}
	return out
}

func (s *Server) handleGetUser(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.users.Snapshot())
}

func (s *Server) handleSetUser(w http.ResponseWriter, r *http.Request) {
	var req setUserRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	snap, err := s.users.SetUser(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), false)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.users.Logout(r.Context()))
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.users.Preferences())
}

func (s *Server) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	prefs, err := s.users.UpdatePreferences(r.Context(), req.patch())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), false)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}
