// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		b[i] = codeCharset[n.Int64()]
	}

	return string(b), nil
}

// GenerateVerificationCode returns a 32-character high-entropy code for
// certificate verification (~190 bits).
func GenerateVerificationCode() (string, error) {
	return GenerateRandomString(32)
}
