package reliability

import (
	"context"
	"errors"
	"net"

	"github.com/sony/gobreaker/v2"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// IsRetryableHTTPStatus classifies upstream statuses worth a manual retry.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the user should be offered "Try Again" for
// err. Nothing in the assistant retries on its own; this only labels.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() > 0 {
		return IsRetryableHTTPStatus(sc.HTTPStatus())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch domain.KindOf(err) {
	case domain.KindEmptyRecording, domain.KindVoiceProcessing:
		return true
	}
	return false
}
