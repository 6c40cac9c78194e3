package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/spec-kit/sector-mail-desk/internal/config"
)

func fastPolicy(attempts int) *RetryPolicy {
	return NewRetryPolicy(config.RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, nil)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"quota", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"wrapped backend", fmt.Errorf("list: %w", &googleapi.Error{Code: http.StatusInternalServerError}), true},
		{"rate limited 403", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"breaker open", gobreaker.ErrOpenState, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestRetryPolicyRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	err := fastPolicy(5).Do(context.Background(), "test", func() error {
		calls++
		return notFound
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyBoundsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "test", func() error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
