package httpapi

import (
	"errors"
	"net/http"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/reliability"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func respondError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	respondJSON(w, status, errorResponse{Error: message, Code: code, Retryable: retryable})
}

// respondDomainError maps a classified failure onto an HTTP status.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "internal"
	}
	respondError(w, statusForError(kind, err), code, domain.UserMessage(err), reliability.IsRetryable(err))
}

func statusForError(kind domain.Kind, err error) int {
	switch kind {
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindUnsupported:
		return http.StatusNotImplemented
	case domain.KindNoActiveRecording, domain.KindRecordingActive, domain.KindInvalidState, domain.KindNoUserSelected:
		return http.StatusConflict
	case domain.KindEmptyRecording:
		return http.StatusUnprocessableEntity
	case domain.KindVoiceProcessing, domain.KindWishlistFetch, domain.KindWishlistMutation,
		domain.KindRecommendation, domain.KindStoreFetch:
		// A backend rejection of the request itself is the caller's problem.
		var sc reliability.StatusCoder
		if errors.As(err, &sc) && sc.HTTPStatus() >= 400 && sc.HTTPStatus() < 500 && !reliability.IsRetryableHTTPStatus(sc.HTTPStatus()) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
