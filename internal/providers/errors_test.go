package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyErrorMessages(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":          ErrorQuota,
		"429 too many requests":       ErrorRate,
		"rate limit reached":          ErrorRate,
		"context too long":            ErrorContext,
		"timeout":                     ErrorTransient,
		"context deadline exceeded":   ErrorTransient,
		"503 temporarily unavailable": ErrorTransient,
		"bad request":                 ErrorPermanent,
	}
	for msg, want := range cases {
		require.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestClassifyErrorStatus(t *testing.T) {
	wrap := func(code int, body string) error {
		return fmt.Errorf("embed batch: %w", &StatusError{Op: "openai embedding", Code: code, Body: body})
	}
	require.Equal(t, ErrorQuota, ClassifyError(wrap(429, `{"error":{"code":"insufficient_quota"}}`)))
	require.Equal(t, ErrorRate, ClassifyError(wrap(429, `{"error":{"message":"slow down"}}`)))
	require.Equal(t, ErrorContext, ClassifyError(wrap(400, `{"error":{"code":"context_length_exceeded"}}`)))
	require.Equal(t, ErrorTransient, ClassifyError(wrap(502, "bad gateway")))
	require.Equal(t, ErrorPermanent, ClassifyError(wrap(401, "invalid api key")))
	require.Equal(t, ErrorTransient, ClassifyError(fmt.Errorf("chat: %w", context.DeadlineExceeded)))
}
