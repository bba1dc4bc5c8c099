package assignment

import (
	"fmt"
	"strings"
)

// Key is the canonical identity of a target. Two targets are the same iff their keys are equal.
// Intent is not part of the key.
type Key string

const (
	keyAllDevices   = "allDevices"
	keyAllUsers     = "allUsers"
	keyGroup        = "group:"
	keyExclude      = "excludeGroup:"
	keyOther        = "other:"
	keyFilterPrefix = "|filter:"
	keyFilterNone   = "none"
)

func (t Target) Key() Key {
	var b strings.Builder
	switch t.kind {
	case KindAllDevices:
		b.WriteString(keyAllDevices)
	case KindAllUsers:
		b.WriteString(keyAllUsers)
	case KindGroup:
		if t.groupMode == GroupExclude {
			b.WriteString(keyExclude)
		} else {
			b.WriteString(keyGroup)
		}
		b.WriteString(t.groupID)
	default:
		b.WriteString(keyOther)
		b.WriteString(strings.ToLower(t.rawType))
	}

	b.WriteString(keyFilterPrefix)
	if t.filter.IsNone() {
		b.WriteString(keyFilterNone)
	} else {
		b.WriteString(string(t.filter.Mode()))
		b.WriteByte(':')
		b.WriteString(t.filter.ID())
	}
	return Key(b.String())
}

func (k Key) String() string {
	return string(k)
}

// DecodeKey parses a key produced by Target.Key back into a target.
func DecodeKey(k Key) (Target, error) {
	raw := string(k)
	idx := strings.LastIndex(raw, keyFilterPrefix)
	if idx < 0 {
		return Target{}, fmt.Errorf("target key %q has no filter segment", raw)
	}
	base, filterPart := raw[:idx], raw[idx+len(keyFilterPrefix):]

	filter := NoFilter
	if filterPart != keyFilterNone {
		mode, id, ok := strings.Cut(filterPart, ":")
		if !ok {
			return Target{}, fmt.Errorf("target key %q has a malformed filter segment", raw)
		}
		fm, err := ParseFilterMode(mode)
		if err != nil {
			return Target{}, err
		}
		if fm == FilterNone {
			return Target{}, fmt.Errorf("target key %q carries an id with filter mode none", raw)
		}
		if filter, err = NewFilter(fm, id); err != nil {
			return Target{}, err
		}
	}

	switch {
	case base == keyAllDevices:
		return AllDevices(filter), nil
	case base == keyAllUsers:
		return AllUsers(filter), nil
	case strings.HasPrefix(base, keyExclude):
		return Group(strings.TrimPrefix(base, keyExclude), GroupExclude, filter)
	case strings.HasPrefix(base, keyGroup):
		return Group(strings.TrimPrefix(base, keyGroup), GroupInclude, filter)
	case strings.HasPrefix(base, keyOther):
		return Other(strings.TrimPrefix(base, keyOther), filter), nil
	default:
		return Target{}, fmt.Errorf("target key %q has an unknown target segment", raw)
	}
}
