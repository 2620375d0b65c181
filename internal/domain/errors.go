package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced at controller boundaries.
type Kind string

const (
	KindPermission        Kind = "permission_denied"
	KindUnsupported       Kind = "unsupported"
	KindNoActiveRecording Kind = "no_active_recording"
	KindRecordingActive   Kind = "recording_active"
	KindEmptyRecording    Kind = "empty_recording"
	KindVoiceProcessing   Kind = "voice_processing"
	KindWishlistFetch     Kind = "wishlist_fetch"
	KindWishlistMutation  Kind = "wishlist_mutation"
	KindNoUserSelected    Kind = "no_user_selected"
	KindRecommendation    Kind = "recommendation_fetch"
	KindStoreFetch        Kind = "store_fetch"
	KindStorage           Kind = "storage"
	KindInvalidState      Kind = "invalid_state"
)

var (
	ErrPermission        = errors.New("microphone permission is required for voice commands")
	ErrUnsupported       = errors.New("voice recording is not supported on this device")
	ErrNoActiveRecording = errors.New("no active recording")
	ErrRecordingActive   = errors.New("a recording is already in progress")
	ErrEmptyRecording    = errors.New("no audio recorded, please try again")
	ErrVoiceProcessing   = errors.New("voice processing failed")
	ErrWishlistFetch     = errors.New("failed to fetch wishlist")
	ErrWishlistMutation  = errors.New("failed to update wishlist")
	ErrNoUserSelected    = errors.New("no user selected")
	ErrRecommendation    = errors.New("failed to fetch recommendations")
	ErrStoreFetch        = errors.New("failed to fetch store items")
	ErrStorage           = errors.New("storage failure")
	ErrInvalidState      = errors.New("operation not allowed in current state")
)

var sentinels = map[Kind]error{
	KindPermission:        ErrPermission,
	KindUnsupported:       ErrUnsupported,
	KindNoActiveRecording: ErrNoActiveRecording,
	KindRecordingActive:   ErrRecordingActive,
	KindEmptyRecording:    ErrEmptyRecording,
	KindVoiceProcessing:   ErrVoiceProcessing,
	KindWishlistFetch:     ErrWishlistFetch,
	KindWishlistMutation:  ErrWishlistMutation,
	KindNoUserSelected:    ErrNoUserSelected,
	KindRecommendation:    ErrRecommendation,
	KindStoreFetch:        ErrStoreFetch,
	KindStorage:           ErrStorage,
	KindInvalidState:      ErrInvalidState,
}

// Error is a classified failure. Message is user-facing (often the
// server-provided text); Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if s, ok := sentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = string(e.Kind)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// NewError builds a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, or "" when unclassified.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return ""
}

// UserMessage returns the text a user should see for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
