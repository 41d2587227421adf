package funds

import (
	"context"
	"sync"
	"testing"

	"subsidyledger/internal/access"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	"subsidyledger/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func govCtx() context.Context {
	return requestcontext.WithCaller(context.Background(), "gov-1", []id.Role{id.RoleGovernment})
}

func newTestPool() *Pool {
	return NewPool(access.NewService(access.NewInMemoryRoleStore()))
}

func TestAddFunds(t *testing.T) {
	pool := newTestPool()

	t.Run("accumulates total", func(t *testing.T) {
		total, err := pool.AddFunds(govCtx(), 10)
		require.NoError(t, err)
		assert.Equal(t, id.Amount(10), total)

		total, err = pool.AddFunds(govCtx(), 5)
		require.NoError(t, err)
		assert.Equal(t, id.Amount(15), total)
		assert.Equal(t, id.Amount(15), pool.Available(context.Background()))
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := pool.AddFunds(govCtx(), 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects non-government", func(t *testing.T) {
		ctx := requestcontext.WithCaller(context.Background(), "someone", nil)
		_, err := pool.AddFunds(ctx, 10)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestDisburse(t *testing.T) {
	pool := newTestPool()
	_, err := pool.AddFunds(govCtx(), 10)
	require.NoError(t, err)

	t.Run("debits available balance", func(t *testing.T) {
		require.NoError(t, pool.Disburse(context.Background(), 4))
		assert.Equal(t, id.Amount(6), pool.Available(context.Background()))
		assert.Equal(t, id.Amount(4), pool.TotalDisbursed(context.Background()))
	})

	t.Run("rejects overdraft without state change", func(t *testing.T) {
		err := pool.Disburse(context.Background(), 7)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		assert.Equal(t, id.Amount(6), pool.Available(context.Background()))
		assert.Equal(t, id.Amount(4), pool.TotalDisbursed(context.Background()))
	})

	t.Run("exact remaining balance is allowed", func(t *testing.T) {
		require.NoError(t, pool.Disburse(context.Background(), 6))
		assert.Equal(t, id.Amount(0), pool.Available(context.Background()))
	})
}

// Conservation invariant under concurrent disbursement: never more than
// the pool holds, and disbursed equals the sum of successful debits.
func TestDisburse_ConcurrentConservation(t *testing.T) {
	pool := newTestPool()
	_, err := pool.AddFunds(govCtx(), 100)
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)

	successes := make(chan id.Amount, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if err := pool.Disburse(context.Background(), 3); err == nil {
				successes <- 3
			}
		}()
	}
	wg.Wait()
	close(successes)

	var sum id.Amount
	for amt := range successes {
		sum += amt
	}
	assert.Equal(t, sum, pool.TotalDisbursed(context.Background()))
	assert.LessOrEqual(t, uint64(pool.TotalDisbursed(context.Background())), uint64(100))
	assert.Equal(t, id.Amount(100)-sum, pool.Available(context.Background()))
}
