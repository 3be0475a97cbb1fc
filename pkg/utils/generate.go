package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateResetCode returns a 4-digit code in [1000, 9999]. The value
// space is only 9000 codes, which is acceptable for a short-lived,
// rate-limited flow but must never gate anything longer-lived.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}

	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
