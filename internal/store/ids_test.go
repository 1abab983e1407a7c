package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDocID_RetriesOnCollision(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	calls := 0

	exists := func(id string) bool {
		calls++
		// Force a collision on the first two draws, then accept.
		if calls <= 2 {
			return true
		}

		return seen[id]
	}

	id, err := newDocID(exists)
	require.NoError(t, err)
	require.Len(t, id, docIDLength)
	require.GreaterOrEqual(t, calls, 3)
}

func TestNewDocID_ExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	_, err := newDocID(func(string) bool { return true })
	require.ErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestRandomDocID_UsesExpectedAlphabet(t *testing.T) {
	t.Parallel()

	id, err := randomDocID()
	require.NoError(t, err)
	require.Len(t, id, docIDLength)

	for _, c := range id {
		require.Contains(t, docIDAlphabet, string(c))
	}
}

func TestNewPermissionID_Unique(t *testing.T) {
	t.Parallel()

	a, err := newPermissionID()
	require.NoError(t, err)

	b, err := newPermissionID()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}
