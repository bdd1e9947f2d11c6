package util

import (
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// ShortID returns prefix-xxxxxxxx, used for board-scoped node and edge IDs that
// end up in prompts and on the canvas.
func ShortID(prefix string) string {
	id := uuid.NewString()[:8]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
