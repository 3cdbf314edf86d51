package http

import (
	"errors"
	"net/http"

	"assessment-service/internal/domain"
)

var (
	errUnsupportedMessage = errors.New("unsupported message type")
	errBadRequest         = errors.New("bad request")
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, errUnsupportedMessage),
		errors.Is(err, domain.ErrQuestionOutOfRange),
		errors.Is(err, domain.ErrOptionOutOfRange),
		errors.Is(err, domain.ErrInvalidDecision),
		errors.Is(err, domain.ErrInvalidAllowance),
		errors.Is(err, domain.ErrIncompleteAnswers):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAttemptLimitReached):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionAlreadyOpen),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrOptionEliminated),
		errors.Is(err, domain.ErrAlreadyEliminated),
		errors.Is(err, domain.ErrHintUnavailable),
		errors.Is(err, domain.ErrFiftyFiftyUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine-readable name sent to websocket clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, errUnsupportedMessage):
		return "bad_request"
	case errors.Is(err, domain.ErrAttemptLimitReached):
		return "attempt_limit"
	case errors.Is(err, domain.ErrSessionAlreadyOpen):
		return "session_open"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "no_session"
	case errors.Is(err, domain.ErrIncompleteAnswers):
		return "incomplete"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return "submitted"
	case errors.Is(err, domain.ErrHintUnavailable), errors.Is(err, domain.ErrFiftyFiftyUnavailable),
		errors.Is(err, domain.ErrAlreadyEliminated):
		return "assist_unavailable"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}
