package catalog

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	shareCodeLength   = 8
	shareCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	defaultShareCodeAttempts = 5
)

// NewShareCode returns a random code of 8 characters from [a-z0-9].
func NewShareCode() (string, error) {
	size := big.NewInt(int64(len(shareCodeAlphabet)))

	b := make([]byte, shareCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("share code: %w", err)
		}
		b[i] = shareCodeAlphabet[n.Int64()]
	}

	return string(b), nil
}
