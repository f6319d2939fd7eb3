package usecase

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newRoomCode - returns a random upper case alphanumeric room code.
func newRoomCode() (string, error) {
	limit := big.NewInt(int64(len(roomCodeAlphabet)))

	code := make([]byte, roomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}
