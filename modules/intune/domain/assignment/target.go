package assignment

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindAllDevices Kind = iota + 1
	KindAllUsers
	KindGroup
	// KindOther holds target types this tool does not manage. They are kept but never match a selection.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindAllDevices:
		return "allDevices"
	case KindAllUsers:
		return "allUsers"
	case KindGroup:
		return "group"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseKind parses the user-facing target type of a bulk request.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "alldevices":
		return KindAllDevices, nil
	case "allusers":
		return KindAllUsers, nil
	case "group":
		return KindGroup, nil
	default:
		return 0, fmt.Errorf("unknown target type %q (expected allDevices|allUsers|group)", raw)
	}
}

type GroupMode string

const (
	GroupInclude GroupMode = "include"
	GroupExclude GroupMode = "exclude"
)

func ParseGroupMode(raw string) (GroupMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "include":
		return GroupInclude, nil
	case "exclude":
		return GroupExclude, nil
	default:
		return "", fmt.Errorf("unknown group mode %q (expected include|exclude)", raw)
	}
}

type FilterMode string

const (
	FilterNone    FilterMode = "none"
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
)

func ParseFilterMode(raw string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return FilterNone, nil
	case "include":
		return FilterInclude, nil
	case "exclude":
		return FilterExclude, nil
	default:
		return "", fmt.Errorf("unknown filter mode %q (expected none|include|exclude)", raw)
	}
}

var (
	ErrFilterIDRequired = errors.New("filter id is required when filter mode is not none")
	ErrGroupIDRequired  = errors.New("group id is required for a group target")
	ErrExclusionFilter  = errors.New("an exclusion group target cannot carry an assignment filter")
)

// Filter is the optional device filter of a target. An id is present iff the mode is not none.
type Filter struct {
	mode FilterMode
	id   string
}

var NoFilter = Filter{mode: FilterNone}

func NewFilter(mode FilterMode, id string) (Filter, error) {
	id = strings.TrimSpace(id)
	if mode == "" || mode == FilterNone {
		return NoFilter, nil
	}
	if mode != FilterInclude && mode != FilterExclude {
		return Filter{}, fmt.Errorf("unknown filter mode %q", mode)
	}
	if id == "" {
		return Filter{}, ErrFilterIDRequired
	}
	return Filter{mode: mode, id: id}, nil
}

func (f Filter) Mode() FilterMode {
	if f.mode == "" {
		return FilterNone
	}
	return f.mode
}

func (f Filter) ID() string {
	return f.id
}

func (f Filter) IsNone() bool {
	return f.Mode() == FilterNone
}

// Target is the closed union of assignment targets.
type Target struct {
	kind      Kind
	groupID   string
	groupMode GroupMode
	filter    Filter
	rawType   string
}

func AllDevices(filter Filter) Target {
	return Target{kind: KindAllDevices, filter: filter}
}

func AllUsers(filter Filter) Target {
	return Target{kind: KindAllUsers, filter: filter}
}

func Group(groupID string, mode GroupMode, filter Filter) (Target, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return Target{}, ErrGroupIDRequired
	}
	if mode == "" {
		mode = GroupInclude
	}
	if mode == GroupExclude && !filter.IsNone() {
		return Target{}, ErrExclusionFilter
	}
	return Target{kind: KindGroup, groupID: groupID, groupMode: mode, filter: filter}, nil
}

// Other wraps an unmanaged target type reported by the directory.
func Other(rawType string, filter Filter) Target {
	return Target{kind: KindOther, rawType: rawType, filter: filter}
}

func (t Target) Kind() Kind           { return t.kind }
func (t Target) GroupID() string      { return t.groupID }
func (t Target) GroupMode() GroupMode { return t.groupMode }
func (t Target) Filter() Filter       { return t.filter }
func (t Target) RawType() string      { return t.rawType }

func (t Target) IsExclusion() bool {
	return t.kind == KindGroup && t.groupMode == GroupExclude
}

// Equal compares targets by their canonical key.
func (t Target) Equal(other Target) bool {
	return t.Key() == other.Key()
}

// NameLookup supplies display names for labels. Implementations return "" for unknown ids.
type NameLookup interface {
	GroupName(id string) string
	FilterName(id string) string
}

// Label renders the target the way it is shown next to an app.
func (t Target) Label(names NameLookup) string {
	suffix := ""
	if !t.filter.IsNone() {
		name := t.filter.ID()
		if names != nil {
			if n := names.FilterName(t.filter.ID()); n != "" {
				name = n
			}
		}
		suffix = fmt.Sprintf(" [Filter: %s · %s]", name, t.filter.Mode())
	}

	switch t.kind {
	case KindAllDevices:
		return "All devices" + suffix
	case KindAllUsers:
		return "All users" + suffix
	case KindGroup:
		name := t.groupID
		if names != nil {
			if n := names.GroupName(t.groupID); n != "" {
				name = n
			}
		}
		if t.groupMode == GroupExclude {
			return "EXCLUDE: " + name + suffix
		}
		return name + suffix
	default:
		return "(other target)" + suffix
	}
}
