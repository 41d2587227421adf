package jwttoken

import (
	"testing"
	"time"

	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParse(t *testing.T) {
	m := NewManager([]byte("test-secret"), "subsidyledger", time.Hour)

	raw, err := m.Mint("gov-1", []id.Role{id.RoleGovernment, id.RoleAuditor}, time.Now())
	require.NoError(t, err)

	identity, roles, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id.Identity("gov-1"), identity)
	assert.Equal(t, []id.Role{id.RoleGovernment, id.RoleAuditor}, roles)
}

func TestParse_Rejections(t *testing.T) {
	m := NewManager([]byte("test-secret"), "subsidyledger", time.Hour)

	t.Run("expired token", func(t *testing.T) {
		raw, err := m.Mint("gov-1", nil, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)
		_, _, err = m.Parse(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager([]byte("other-secret"), "subsidyledger", time.Hour)
		raw, err := other.Mint("gov-1", nil, time.Now())
		require.NoError(t, err)
		_, _, err = m.Parse(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewManager([]byte("test-secret"), "someone-else", time.Hour)
		raw, err := other.Mint("gov-1", nil, time.Now())
		require.NoError(t, err)
		_, _, err = m.Parse(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := m.Parse("not.a.token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestMint_RequiresIdentity(t *testing.T) {
	m := NewManager([]byte("test-secret"), "subsidyledger", time.Hour)
	_, err := m.Mint("", nil, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
