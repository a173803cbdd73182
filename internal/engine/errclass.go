package engine

import (
	"errors"
	"net/http"
	"strings"
)

// Classification of transcript-fetch failures. YouTube reports upstream
// blocking in many shapes (429 responses, text mentioning the caller's
// IP, generic "forbidden" bodies); blocking failures are worth a backoff
// retry while everything else is not.

// ErrNoCaptions marks a video with captions disabled. Terminal, never retried.
var ErrNoCaptions = errors.New("no captions available")

// blockedError marks a failure caused by upstream rate-limiting or geo-blocking.
type blockedError struct {
	msg string
}

func (e *blockedError) Error() string { return e.msg }

// Blocked wraps msg as a blocking failure.
func Blocked(msg string) error { return &blockedError{msg: msg} }

// blockingPatterns are substrings that indicate upstream blocking when a
// structured signal is unavailable. Checked against the lowercased error text.
var blockingPatterns = []string{
	"blocked", "forbidden", "rate limit", "too many requests", "ip", "request",
}

// IsBlocking reports whether err signals upstream blocking worth a backoff retry.
// Structured signals (blockedError, HTTP 429/403) are checked first, with a
// substring fallback for errors that only carry text.
func IsBlocking(err error) bool {
	if err == nil {
		return false
	}

	var blocked *blockedError
	if errors.As(err, &blocked) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusForbidden:
			return true
		}
	}

	text := strings.ToLower(err.Error())
	if strings.Contains(text, "429") {
		return true
	}
	for _, p := range blockingPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err is specifically a rate-limit response.
// Used by the model client to pick the right log level.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}

	text := strings.ToLower(err.Error())
	return strings.Contains(text, "429") || strings.Contains(text, "too many requests") || strings.Contains(text, "rate limit")
}
