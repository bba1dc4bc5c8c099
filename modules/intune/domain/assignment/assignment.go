package assignment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const synthesizedPrefix = "local-"

// Assignment binds an app to a target with an intent. ID is empty or synthesized
// until the directory's authoritative listing replaces the entry.
type Assignment struct {
	ID     string
	Intent Intent
	Target Target
}

// Matches reports whether the assignment has the given intent and target key.
func (a Assignment) Matches(intent Intent, key Key) bool {
	return a.Intent == intent && a.Target.Key() == key
}

// IsSynthesized reports whether the id was created locally after an optimistic insert.
func (a Assignment) IsSynthesized() bool {
	return IsSynthesizedID(a.ID)
}

func IsSynthesizedID(id string) bool {
	return strings.HasPrefix(id, synthesizedPrefix)
}

// SynthesizeID returns a placeholder id unique within the session.
func SynthesizeID(seq uint64) string {
	return fmt.Sprintf("%s%d-%s", synthesizedPrefix, seq, uuid.NewString()[:8])
}
