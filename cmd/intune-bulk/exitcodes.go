package main

import (
	"errors"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/serrors"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitGeneric    = 1
	exitValidation = 2
	exitUsage      = 3
	exitRemote     = 4
	exitPartial    = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

var usageCodes = map[string]bool{
	services.ErrNoTenant.Code:      true,
	services.ErrNotSignedIn.Code:   true,
	services.ErrUnknownTenant.Code: true,
}

var validationCodes = map[string]bool{
	services.ErrNoApps.Code:          true,
	services.ErrInvalidRequest.Code:  true,
	services.ErrExclusionFilter.Code: true,
	services.ErrUnknownApp.Code:      true,
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}

	var resErr *services.ResolutionError
	if errors.As(err, &resErr) {
		if resErr.Reason == services.ReasonLookupFailed {
			return exitRemote
		}
		return exitValidation
	}

	code := serrors.CodeOf(err)
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		code = svcErr.Code
	}
	switch {
	case usageCodes[code]:
		return exitUsage
	case validationCodes[code]:
		return exitValidation
	}

	if domain.StatusOf(err) != 0 {
		return exitRemote
	}
	return exitGeneric
}
