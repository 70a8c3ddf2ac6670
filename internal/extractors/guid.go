package extractors

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenerateGUIDFromURL derives a short stable id from a permalink, for posts
// that arrive without one (RSS entries with an empty GUID).
func GenerateGUIDFromURL(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "x" + hex.EncodeToString(hash[:])[:11]
}
