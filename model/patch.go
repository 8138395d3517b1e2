package model

import (
	"maps"
	"slices"
)

// Patch is a partial update body. A nil value clears the field on the
// server.
type Patch map[string]any

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// Fields returns the patched field names, sorted.
func (p Patch) Fields() []string {
	return slices.Sorted(maps.Keys(p))
}

// StatusPatch is the body of a status-only update.
func StatusPatch(status string) Patch {
	return Patch{"status": status}
}
