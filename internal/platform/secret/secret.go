// Package secret generates unguessable bearer values.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// TokenBytes is the entropy of session and verification tokens.
const TokenBytes = 32

// Token returns n random bytes encoded as base58, which is URL and cookie
// safe without escaping.
func Token(n int) (string, error) {
	buf, err := read(n)
	if err != nil {
		return "", err
	}
	return base58.Encode(buf), nil
}

// Hex returns n random bytes hex encoded.
func Hex(n int) (string, error) {
	buf, err := read(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func read(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("secret length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}
