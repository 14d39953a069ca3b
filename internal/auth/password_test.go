package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Passw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEqual(t, "Passw0rd1", hash)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("Passw0rd1")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		require.True(t, CheckPassword("Passw0rd1", hash))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		require.False(t, CheckPassword("passw0rd1", hash))
	})

	t.Run("plaintext is never a valid hash", func(t *testing.T) {
		require.False(t, CheckPassword("Passw0rd1", "Passw0rd1"))
	})
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	first, err := HashPassword("Passw0rd1")
	require.NoError(t, err)

	second, err := HashPassword("Passw0rd1")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}
