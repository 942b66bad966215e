package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// digestSeparator joins fields before hashing. Digest strips it from every field so a
// field value cannot forge an extra field boundary.
const digestSeparator = "|"

// Digest returns the hex-encoded SHA-256 of the ordered fields joined by "|".
// Field order is significant. Used for device fingerprints; the raw fields are never stored.
func Digest(fields ...string) string {
	clean := make([]string, len(fields))
	for i, f := range fields {
		clean[i] = strings.ReplaceAll(strings.TrimSpace(f), digestSeparator, "")
	}
	h := sha256.Sum256([]byte(strings.Join(clean, digestSeparator)))
	return hex.EncodeToString(h[:])
}
