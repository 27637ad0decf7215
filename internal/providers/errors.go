package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

// StatusError is a non-2xx answer from an OpenAI-compatible endpoint.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Op, e.Code, e.Body)
}

// ClassifyError decides how ingestion failover treats a provider error. Typed
// errors are checked first; message matching covers clients that only return text.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	var se *StatusError
	if errors.As(err, &se) {
		body := strings.ToLower(se.Body)
		switch {
		case strings.Contains(body, "insufficient_quota"):
			return ErrorQuota
		case strings.Contains(body, "context_length_exceeded"), se.Code == http.StatusRequestEntityTooLarge:
			return ErrorContext
		case se.Code == http.StatusTooManyRequests:
			return ErrorRate
		case se.Code >= 500:
			return ErrorTransient
		default:
			return ErrorPermanent
		}
	}
	return classifyMessage(strings.ToLower(err.Error()))
}

func classifyMessage(e string) ErrorType {
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "deadline exceeded"), strings.Contains(e, "timeout"),
		strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "connection refused"):
		return ErrorTransient
	case strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return ErrorContext
	default:
		return ErrorPermanent
	}
}
