package sweeper

import (
	"context"
	"testing"

	dErrors "subsidyledger/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	expired int
	swept   int
}

func (f *fakeLedger) CountExpiredPending(context.Context) (int, error) {
	return f.expired, nil
}

func (f *fakeLedger) SweepExpired(context.Context) (int, error) {
	f.swept += f.expired
	f.expired = 0
	return f.swept, nil
}

func TestRun_ObserveOnlyByDefault(t *testing.T) {
	led := &fakeLedger{expired: 3}
	s, err := New(led, "@hourly")
	require.NoError(t, err)

	s.Run(context.Background())
	assert.Equal(t, 3, led.expired, "observe mode must not move milestones")
	assert.Zero(t, led.swept)
}

func TestRun_SweepToFailed(t *testing.T) {
	led := &fakeLedger{expired: 3}
	s, err := New(led, "@hourly", WithSweepToFailed())
	require.NoError(t, err)

	s.Run(context.Background())
	assert.Zero(t, led.expired)
	assert.Equal(t, 3, led.swept)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeLedger{}, "not a schedule")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
