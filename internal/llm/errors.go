package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRateLimited   = errors.New("llm rate limited")
	ErrUnavailable   = errors.New("llm unavailable")
	ErrPollTimeout   = errors.New("llm run poll timeout")
	ErrEmptyResponse = errors.New("llm empty response")
)

const defaultRetryAfter = 60 * time.Second

// RateLimitError indica que el proveedor rechazo la llamada por limite de tasa.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm rate limited, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("llm rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterFrom extrae la espera de un error de rate limit; false si err no lo es.
func RetryAfterFrom(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimited) {
		return defaultRetryAfter, true
	}
	return 0, false
}

func parseRetryAfter(h http.Header) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}
