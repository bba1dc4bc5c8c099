// Package serrors holds coded sentinel errors shared by the CLI and the HTTP API.
package serrors

import "errors"

type Base struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (b *Base) Error() string {
	return b.Message
}

// Is matches any *Base carrying the same code.
func (b *Base) Is(target error) bool {
	var other *Base
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == b.Code
}

func NewError(code, message string) *Base {
	return &Base{Code: code, Message: message}
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var b *Base
	if errors.As(err, &b) {
		return b.Code
	}
	return ""
}
