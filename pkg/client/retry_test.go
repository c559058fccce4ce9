package client

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &InspireError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
	clientErr := &InspireError{StatusCode: 400, ErrorClass: ErrorClassClient, Message: "bad"}
	plainErr := errors.New("unclassified")

	tests := []struct {
		name         string
		errs         []error
		wantCalls    int
		wantErr      bool
		wantExhausts bool
	}{
		{
			name:      "success first attempt",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "success after server errors",
			errs:      []error{serverErr, serverErr, nil},
			wantCalls: 3,
		},
		{
			name:         "exhausted",
			errs:         []error{serverErr, serverErr, serverErr},
			wantCalls:    3,
			wantErr:      true,
			wantExhausts: true,
		},
		{
			name:      "client error stops immediately",
			errs:      []error{clientErr},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "unclassified error stops immediately",
			errs:      []error{plainErr},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetry(), quietLogger(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrRetryExhausted) != tt.wantExhausts {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", !tt.wantExhausts, tt.wantExhausts)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryWithBackoff(ctx, config, quietLogger(), func() error {
		calls++
		cancel()
		return &InspireError{ErrorClass: ErrorClassNetwork, Message: "transport"}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_HonorsRetryAfterCap(t *testing.T) {
	config := fastRetry()
	start := time.Now()

	calls := 0
	err := retryWithBackoff(context.Background(), config, quietLogger(), func() error {
		calls++
		if calls == 1 {
			return &InspireError{ErrorClass: ErrorClassRateLimit, StatusCode: 429, RetryAfter: time.Hour}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Retry-After was not capped by MaxBackoff: waited %v", elapsed)
	}
}
