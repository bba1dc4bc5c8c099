package assignment

import (
	"fmt"
	"strings"
)

// Intent is the install semantics of an assignment, always held in normalized form.
type Intent string

const (
	IntentRequired  Intent = "required"
	IntentAvailable Intent = "available"
	IntentUninstall Intent = "uninstall"
)

// NormalizeIntent lowercases raw and folds availableWithoutEnrollment into available.
// Unknown values are kept lowercased so they can still be compared.
func NormalizeIntent(raw string) Intent {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "availablewithoutenrollment" {
		return IntentAvailable
	}
	return Intent(v)
}

// ParseIntent accepts only intents a user may choose for a bulk operation.
func ParseIntent(raw string) (Intent, error) {
	switch i := NormalizeIntent(raw); i {
	case IntentRequired, IntentAvailable, IntentUninstall:
		return i, nil
	default:
		return "", fmt.Errorf("unknown intent %q (expected required|available|uninstall)", raw)
	}
}

func (i Intent) String() string {
	return string(i)
}
