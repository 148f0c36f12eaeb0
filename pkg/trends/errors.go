package trends

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited is returned when the source asks the caller to slow down.
	ErrRateLimited = errors.New("trends: rate limited")
	// ErrUpstreamUnavailable is returned when no session could be established.
	ErrUpstreamUnavailable = errors.New("trends: upstream unavailable")
	// ErrTooManyTerms is returned for interest requests above the per-call limit.
	ErrTooManyTerms = errors.New("trends: too many terms")
)

// StatusError is a non-200 answer from the source.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trends: %s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429 answer.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == 429
}

// IsRateLimited classifies err as a rate-limit signal. Besides the typed
// errors it recognises the wording upstream proxies use for throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "status 429")
}

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	return IsRateLimited(err)
}
