package app

import "strings"

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformWindows Platform = "windows"
	PlatformIOS     Platform = "ios"
	PlatformMacOS   Platform = "macos"
	PlatformOther   Platform = "other"
)

func (p Platform) Label() string {
	switch p {
	case PlatformAndroid:
		return "Android"
	case PlatformWindows:
		return "Windows"
	case PlatformIOS:
		return "iOS"
	case PlatformMacOS:
		return "macOS"
	default:
		return "Other"
	}
}

// PlatformFromType derives the platform from the app's type tag. Checks run in a fixed order
// so the first platform fragment found wins.
func PlatformFromType(typeTag string) Platform {
	t := strings.ToLower(typeTag)
	switch {
	case strings.Contains(t, "android"):
		return PlatformAndroid
	case strings.Contains(t, "win"):
		return PlatformWindows
	case strings.Contains(t, "ios"):
		return PlatformIOS
	case strings.Contains(t, "mac"):
		return PlatformMacOS
	default:
		return PlatformOther
	}
}

// App is a managed application as listed by the directory.
type App struct {
	ID          string
	DisplayName string
	Publisher   string
	TypeTag     string
}

func (a App) Platform() Platform {
	return PlatformFromType(a.TypeTag)
}

// TypeName is the last segment of the type tag, e.g. "win32LobApp".
func (a App) TypeName() string {
	if a.TypeTag == "" {
		return "-"
	}
	parts := strings.Split(a.TypeTag, ".")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return a.TypeTag
}

// Name falls back to the id for apps without a display name.
func (a App) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.ID
}

// Filter narrows an app list by platform and by a case-insensitive fragment of name or publisher.
type Filter struct {
	Platform Platform
	Text     string
}

func (f Filter) Match(a App) bool {
	if f.Platform != "" && f.Platform != "all" && a.Platform() != f.Platform {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(f.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.DisplayName), text) ||
		strings.Contains(strings.ToLower(a.Publisher), text)
}

func (f Filter) Apply(apps []App) []App {
	out := make([]App, 0, len(apps))
	for _, a := range apps {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}
