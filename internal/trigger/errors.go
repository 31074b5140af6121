package trigger

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/lectern/internal/errs"
)

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Is classifies status errors: 404 is not found, 409 conflict, 408/504
// timeout, everything else an external service failure.
func (e *StatusError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == errs.ErrNotFound
	case http.StatusConflict:
		return target == errs.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == errs.ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return target == errs.ErrValidation
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return target == errs.ErrTimeout
	}
	return target == errs.ErrExternal
}

// RetryableStatus reports whether a response status is worth another attempt.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Retryable reports whether err is transient: network errors, timeouts and
// retryable statuses.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.StatusCode)
	}
	switch errs.KindOf(err) {
	case errs.KindNetwork, errs.KindTimeout:
		return true
	}
	return false
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. It returns 0 when the header is absent or unparseable.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
