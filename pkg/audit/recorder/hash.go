package recorder

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex-encoded SHA-256 of the before and after
// snapshots. The two parts are separated by a zero byte so moving bytes
// between them changes the hash.
func HashContent(before, after []byte) string {
	h := sha256.New()
	h.Write(before)
	h.Write([]byte{0})
	h.Write(after)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether the record's snapshots still match its hash.
func Verify(before, after []byte, hash string) bool {
	return HashContent(before, after) == hash
}
