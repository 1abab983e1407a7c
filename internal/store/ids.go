package store

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// docIDAlphabet is spec.md §3's document-id charset: [A-Za-z0-9].
const (
	docIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	docIDLength   = 6
	// maxIDAttempts bounds the collision-retry loop; with a 62^6 keyspace
	// and a per-user document count in the hundreds at most, a collision on
	// even the first draw is already astronomically unlikely.
	maxIDAttempts = 64
)

// newDocID draws a random 6-character id and retries on collision against
// exists, per spec.md §3 ("drawn at random from the full id space and
// retried on collision, not derived from content").
func newDocID(exists func(id string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := randomDocID()
		if err != nil {
			return "", err
		}

		if !exists(id) {
			return id, nil
		}
	}

	return "", ErrIDSpaceExhausted
}

func randomDocID() (string, error) {
	buf := make([]byte, docIDLength)

	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(docIDAlphabet))))
		if err != nil {
			return "", fmt.Errorf("draw document id: %w", err)
		}

		buf[i] = docIDAlphabet[n.Int64()]
	}

	return string(buf), nil
}

// newPermissionID allocates an internal, non-wire identifier for a
// Permission row. Grounded on the teacher's UUIDv7 allocator
// (internal/_teacher_ticketstore/ids.go): time-ordered so log lines sort
// naturally, though nothing here derives a filename from it.
func newPermissionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new permission id: %w", err)
	}

	return id.String(), nil
}
