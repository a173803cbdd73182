package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsBlocking(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"structured blocked", Blocked("exit node rejected"), true},
		{"wrapped blocked", fmt.Errorf("fetch: %w", Blocked("rejected")), true},
		{"status 429", &StatusError{StatusCode: 429}, true},
		{"status 403", &StatusError{StatusCode: 403}, true},
		{"status 500", &StatusError{StatusCode: 500}, false},
		{"text 429", errors.New("HTTP 429: slow down"), true},
		{"text rate limit", errors.New("upstream rate limit exceeded"), true},
		{"text too many requests", errors.New("Too Many Requests"), true},
		{"text ip mention", errors.New("your ip has been flagged"), true},
		{"plain parse error", errors.New("unexpected end of JSON"), false},
		{"no captions", ErrNoCaptions, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlocking(tt.err); got != tt.want {
				t.Errorf("IsBlocking(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", &StatusError{StatusCode: 429}, true},
		{"status 403", &StatusError{StatusCode: 403}, false},
		{"text rate limit", errors.New("rate limit reached for model"), true},
		{"unrelated", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimit(tt.err); got != tt.want {
				t.Errorf("IsRateLimit(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
