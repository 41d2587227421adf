package models

import (
	"testing"
	"time"

	dErrors "subsidyledger/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneLifecycle(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	deadline := now.Add(24 * time.Hour)

	m, err := NewMilestone(1, "install capacity", 1_000, 100, "sensor-1", deadline, now)
	require.NoError(t, err)
	require.NoError(t, m.CanVerify(now))

	t.Run("paid flag is monotonic", func(t *testing.T) {
		cp := *m
		cp.ApplyVerification(150, true, "op-1", now)
		require.NoError(t, cp.MarkPaid())
		assert.True(t, cp.Settled())

		err := cp.MarkPaid()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		// Dispute rejection moves status but never the flag.
		require.NoError(t, cp.CanDispute())
		cp.ApplyDispute()
		cp.ApplyResolution(false, "aud-1", now)
		assert.Equal(t, MilestoneStatusFailed, cp.Status)
		assert.True(t, cp.Paid)
	})

	t.Run("failed milestone is not payable", func(t *testing.T) {
		cp := *m
		cp.ApplyVerification(50, true, "op-1", now)
		assert.Equal(t, MilestoneStatusFailed, cp.Status)
		err := cp.MarkPaid()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("pending milestone cannot be disputed", func(t *testing.T) {
		cp := *m
		err := cp.CanDispute()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("expiry applies only past the deadline", func(t *testing.T) {
		cp := *m
		assert.False(t, cp.CanExpire(deadline))
		assert.True(t, cp.CanExpire(deadline.Add(time.Second)))
	})
}
