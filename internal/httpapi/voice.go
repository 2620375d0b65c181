package httpapi

import (
	"net/http"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/voice"
)

func (s *Server) handleVoiceSnapshot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.voice.Snapshot())
}

func (s *Server) handleVoiceStart(w http.ResponseWriter, r *http.Request) {
	s.respondVoice(w, http.StatusCreated)(s.voice.Start(r.Context()))
}

// handleVoiceStop blocks until the recording has been transcribed.
func (s *Server) handleVoiceStop(w http.ResponseWriter, r *http.Request) {
	s.respondVoice(w, http.StatusOK)(s.voice.Stop(r.Context()))
}

func (s *Server) handleVoiceConfirm(w http.ResponseWriter, r *http.Request) {
	s.respondVoice(w, http.StatusOK)(s.voice.Confirm(r.Context()))
}

func (s *Server) handleVoiceCancel(w http.ResponseWriter, _ *http.Request) {
	s.respondVoice(w, http.StatusOK)(s.voice.Cancel())
}

func (s *Server) handleVoiceReset(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.voice.Reset())
}

func (s *Server) respondVoice(w http.ResponseWriter, okStatus int) func(voice.Snapshot, error) {
	return func(snap voice.Snapshot, err error) {
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, okStatus, snap)
	}
}
