// Package idgen mints fence identifiers: a "gf-" prefix followed by a
// nanoid drawn from an alphanumeric alphabet, so IDs are URL-path safe.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// FencePrefix marks every generated fence ID.
	FencePrefix = "gf-"

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size     = 12
)

// Generate returns a new fence ID.
func Generate() (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return FencePrefix + id, nil
}

// IsFenceID reports whether id has the shape Generate produces.
func IsFenceID(id string) bool {
	rest, ok := strings.CutPrefix(id, FencePrefix)
	if !ok || len(rest) != size {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
