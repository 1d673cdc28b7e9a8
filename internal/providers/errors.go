package providers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType buckets provider failures by how the manager should react.
type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
	ErrorAuth      ErrorType = "auth"
)

// Vendor clients format failures as "status 429: ..." or "error 503: ...".
var statusPattern = regexp.MustCompile(`(?:status|error) (\d{3})`)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	e := strings.ToLower(err.Error())
	// Quota is checked before the status code: OpenAI reports exhausted
	// credit as a 429 with insufficient_quota.
	if strings.Contains(e, "insufficient_quota") || strings.Contains(e, "quota") || strings.Contains(e, "credit") {
		return ErrorQuota
	}
	if m := statusPattern.FindStringSubmatch(e); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch {
		case code == 401 || code == 403:
			return ErrorAuth
		case code == 429:
			return ErrorRate
		case code == 408 || code >= 500:
			return ErrorTransient
		}
	}
	switch {
	case strings.Contains(e, "key missing"):
		return ErrorAuth
	case strings.Contains(e, "rate limit"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "too long"), strings.Contains(e, "maximum context"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "connection reset"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
