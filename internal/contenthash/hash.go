// Package contenthash fingerprints raw document text so the transform
// pipeline can tell whether content changed since the last AI pass.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a digest returned by Hash.
const Size = sha256.Size * 2

// Hash returns the lowercase hex SHA-256 digest of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether stored is present and equals the digest of text.
func Matches(text string, stored *string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return *stored == Hash(text)
}
