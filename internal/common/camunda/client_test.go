package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt succeeds", errs: []error{nil}, wantCalls: 1},
		{name: "transient then success", errs: []error{errors.New("rpc error: Unavailable"), nil}, wantCalls: 2},
		{name: "permanent error is not retried", errs: []error{errors.New("job not found")}, wantCalls: 1, wantErr: ErrBrokerRejected},
		{
			name:      "transient until exhausted",
			errs:      []error{errors.New("connection refused"), errors.New("connection refused"), errors.New("connection refused")},
			wantCalls: 3,
			wantErr:   ErrBrokerUnavailable,
		},
		{name: "deadline maps to timeout", errs: []error{errors.New("context deadline exceeded"), errors.New("context deadline exceeded"), errors.New("context deadline exceeded")}, wantCalls: 3, wantErr: ErrBrokerTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := ExecuteWithRetry(context.Background(), fastRetry, "complete-job", func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "complete-job")
		})
	}
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := ExecuteWithRetry(ctx, &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, "op", func(context.Context) error {
		calls++
		return errors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
