package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	hash, err := Hash(secret)
	require.NoError(t, err)

	ok, err := Verify(secret, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong-token", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
}
