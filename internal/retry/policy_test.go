package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, ModeLinear, p.Mode)
	require.Equal(t, time.Second, p.Initial)
	require.Equal(t, 30*time.Second, p.Max)
	require.Equal(t, 2, p.MaxRetries)
	require.NoError(t, p.Validate())
	require.Zero(t, NoRetry().MaxRetries)
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(ModeFixed, 5*time.Second, 2*time.Second, 5)
	require.Equal(t, 2*time.Second, p.Initial)
	require.Equal(t, ModeFixed, p.Mode)
	require.Equal(t, 5, p.MaxRetries)

	require.Equal(t, ModeLinear, NewPolicy("bogus", 0, 0, -1).Mode)
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{"fixed", NewPolicy(ModeFixed, 100*ms, 500*ms, 3), []time.Duration{0, 100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(ModeLinear, 100*ms, 250*ms, 5), []time.Duration{0, 100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(ModeExponential, 50*ms, 160*ms, 5), []time.Duration{0, 50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for n, want := range tt.want {
				require.Equal(t, want, tt.policy.Delay(n), "retry %d", n)
			}
		})
	}
	require.Equal(t, 160*ms, NewPolicy(ModeExponential, 50*ms, 160*ms, 5).Delay(64))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Exponential ")
	require.NoError(t, err)
	require.Equal(t, ModeExponential, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeLinear, m)
	_, err = ParseMode("random")
	require.Error(t, err)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(context.Background(), func(int) error {
		calls++
		if calls < 3 {
			return ferrors.PublishError("flaky").Retryable().Build()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	permanent := errors.New("denied")
	err := p.Do(context.Background(), func(int) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	p := NewPolicy(ModeLinear, time.Millisecond, 2*time.Millisecond, 2)
	var attempts []int
	err := p.Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		return ferrors.NetworkError("down").Retryable().Build()
	})
	require.Error(t, err)
	require.Equal(t, []int{0, 1, 2}, attempts)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy(ModeFixed, time.Hour, time.Hour, 5)
	calls := 0
	err := p.Do(ctx, func(int) error {
		calls++
		cancel()
		return ferrors.NetworkError("down").Retryable().Build()
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
