package constants

import "github.com/go-playground/validator/v10"

type contextKey string

const (
	LoggerKey    contextKey = "logger"
	RequestStart contextKey = "request_start"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())
