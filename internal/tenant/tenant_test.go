package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corag/internal/domain/entities"
)

func TestDeriveID_Deterministic(t *testing.T) {
	a, err := DeriveID("correct horse battery staple")
	require.NoError(t, err)
	b, err := DeriveID("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveID_DistinctKeysDistinctIDs(t *testing.T) {
	a, err := DeriveID("tenant-one")
	require.NoError(t, err)
	b, err := DeriveID("tenant-two")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveID_NeverEchoesSecret(t *testing.T) {
	id, err := DeriveID("secret")
	require.NoError(t, err)
	assert.NotContains(t, id, "secret")
	assert.Len(t, id, 64, "hex-encoded SHA-256")
}

func TestDeriveID_EmptyKey(t *testing.T) {
	_, err := DeriveID("")
	assert.ErrorIs(t, err, entities.ErrEmptyTenantKey)
}
