package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests input and encodes the sum as lowercase hex. Used to
// derive opaque Redis keys, for example from Idempotency-Key headers.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
