package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// generateActivationCode creates a secure, random, and human-readable pool code.
// Format: XXXX-XXXX-XXXX
func generateActivationCode() (string, error) {
	// A character set that avoids ambiguous characters like O/0, I/1, l.
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLength = 12

	buffer, err := randomFrom(rand.Reader, chars, codeLength)
	if err != nil {
		return "", err
	}

	// Format as XXXX-XXXX-XXXX
	return string(buffer[0:4]) + "-" + string(buffer[4:8]) + "-" + string(buffer[8:12]), nil
}

// generateControlNumber creates the reference handed to a user who requests
// manual approval. Format: PREFIX-YEAR-XXXXXX
func generateControlNumber(prefix string, year int) (string, error) {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix, err := randomFrom(rand.Reader, chars, 6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", prefix, year, suffix), nil
}

// randomFrom draws n characters uniformly from chars.
func randomFrom(r io.Reader, chars string, n int) ([]byte, error) {
	max := big.NewInt(int64(len(chars)))
	buffer := make([]byte, n)
	for i := range buffer {
		idx, err := rand.Int(r, max)
		if err != nil {
			return nil, err
		}
		buffer[i] = chars[idx.Int64()]
	}
	return buffer, nil
}
