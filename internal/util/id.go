package util

import "github.com/google/uuid"

// NewID returns a server-assigned record identifier.
func NewID() string {
	return uuid.NewString()
}

// NewPrefixedID returns an identifier with a type prefix, used for
// short-lived artifacts such as session token IDs.
func NewPrefixedID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}
