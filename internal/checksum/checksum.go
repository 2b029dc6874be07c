// Package checksum derives content fingerprints and document identifiers.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Equal bytes always
// yield equal fingerprints.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DocumentID derives the stable identifier for a vault-relative path.
// The same path always yields the same identifier.
func DocumentID(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:])
}
