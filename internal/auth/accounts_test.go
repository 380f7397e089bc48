package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Register("alice", "s3cret-passphrase"))

	require.True(t, store.Authenticate("alice", "s3cret-passphrase"))
	require.False(t, store.Authenticate("alice", "wrong"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Register("alice", "original"))
	require.ErrorIs(t, store.Register("alice", "takeover"), ErrUserExists)

	// The original credentials survive a rejected re-registration.
	require.True(t, store.Authenticate("alice", "original"))
	require.False(t, store.Authenticate("alice", "takeover"))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	store := NewStore()

	require.False(t, store.Authenticate("nobody", "anything"))
}
