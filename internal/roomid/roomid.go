// Package roomid generates memorable, URL-safe room identifiers. Room ids
// are client-chosen; the coordinator creates whatever room a client first
// joins, so uniqueness only needs to be probabilistic.
package roomid

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
)

// New creates a random room ID using word combinations.
// Format: word-word-word (e.g., "gentle-otter-nebula").
func New() string {
	pools := [][]string{adjectives, animals, extras}

	words := make([]string, len(pools))
	for i, pool := range pools {
		words[i] = pool[randomIndex(len(pool))]
	}

	return fmt.Sprintf("%s-%s-%s", words[0], words[1], words[2])
}

// randomIndex returns a cryptographically secure random index for a slice
// of the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		slog.Error("failed to generate random index", "err", err)
		return 0
	}
	return int(n.Int64())
}
