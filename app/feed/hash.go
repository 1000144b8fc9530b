package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ContentHash fingerprints an item by title and link for duplicate detection.
func ContentHash(item Item) string {
	content := fmt.Sprintf("%s|%s", item.Title, item.Link)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// GUID returns the identifier an item is stored under.
func GUID(item Item) string {
	return cmp.Or(item.ID, item.Link, ContentHash(item))
}
