package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct error carries its code", func(t *testing.T) {
		err := New(CodeInsufficientFunds, "pool exhausted")
		assert.True(t, HasCode(err, CodeInsufficientFunds))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("wrapped error keeps the outer code", func(t *testing.T) {
		cause := errors.New("row not found")
		err := Wrap(cause, CodeNotFound, "milestone not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("fmt wrapping preserves the code", func(t *testing.T) {
		err := fmt.Errorf("verify milestone: %w", New(CodeDeadlineExpired, "deadline passed"))
		assert.True(t, HasCode(err, CodeDeadlineExpired))
	})

	t.Run("non-domain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeSystemPaused, CodeOf(New(CodeSystemPaused, "halted")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "should stay nil"))
}
