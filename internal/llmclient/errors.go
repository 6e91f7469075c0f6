package llmclient

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// AuthError indicates the credential was rejected. It will not resolve
// without a new credential.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// QuotaError indicates the account's quota or billing is exhausted. It will
// not resolve with retries.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string { return e.Err.Error() }
func (e *QuotaError) Unwrap() error { return e.Err }

// RateLimitError indicates transient throttling. RetryAfter is the server's
// suggested wait, or zero if it didn't say.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// APIError is any other non-2xx provider response.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string { return e.Err.Error() }
func (e *APIError) Unwrap() error { return e.Err }

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var aErr *AuthError
	return errors.As(err, &aErr)
}

// IsQuota reports whether err is (or wraps) a QuotaError.
func IsQuota(err error) bool {
	var qErr *QuotaError
	return errors.As(err, &qErr)
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError, and the
// server's suggested wait if so.
func IsRateLimit(err error) (time.Duration, bool) {
	var rErr *RateLimitError
	if errors.As(err, &rErr) {
		return rErr.RetryAfter, true
	}
	return 0, false
}

// IsFatal reports whether err means the whole run should stop: a rejected
// credential or an exhausted quota. Everything else is worth continuing past.
func IsFatal(err error) bool {
	return IsAuth(err) || IsQuota(err)
}

// classifyHTTP maps a non-2xx provider response to a typed error. The body
// is capped so a huge error page never ends up in logs.
func classifyHTTP(provider string, resp *http.Response, body []byte) error {
	const max = 2048
	if len(body) > max {
		body = body[:max]
	}
	err := fmt.Errorf("%s: unexpected status %s: %s", provider, resp.Status, body)

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return &AuthError{Err: err}
	case resp.StatusCode == 402:
		return &QuotaError{Err: err}
	case resp.StatusCode == 429 && bytes.Contains(body, []byte("insufficient_quota")):
		return &QuotaError{Err: err}
	case resp.StatusCode == 429:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), Err: err}
	default:
		return &APIError{StatusCode: resp.StatusCode, Err: err}
	}
}

// parseRetryAfter handles the delta-seconds form of the Retry-After header.
// The HTTP-date form is rare from model APIs and is treated as unknown.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
