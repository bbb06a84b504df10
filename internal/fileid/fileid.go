// Package fileid derives stable identifiers from file content and index names.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const digestPrefix = "sha256:"

// Digest returns a stable content digest for normalized text.
// Same text always yields the same digest; used to spot one document
// ingested under two different file names.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return digestPrefix + hex.EncodeToString(sum[:])
}

// NameKey returns a filesystem-safe key for an index name. Index names may
// contain spaces and punctuation; the key is plain hex.
func NameKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:16])
}
