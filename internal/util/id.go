package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier, e.g. "mr_1b9d6bcd4b2d4f1a".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}
