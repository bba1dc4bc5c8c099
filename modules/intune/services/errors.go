package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/serrors"
)

var (
	ErrNoTenant       = serrors.NewError("INTUNE_NO_TENANT", "select a tenant first")
	ErrNotSignedIn    = serrors.NewError("INTUNE_NOT_SIGNED_IN", "sign in and load the app list first")
	ErrBusy           = serrors.NewError("INTUNE_BUSY", "another operation is still running")
	ErrNoApps         = serrors.NewError("INTUNE_NO_APPS", "select at least one app first")
	ErrInvalidRequest = serrors.NewError("INTUNE_INVALID_REQUEST", "invalid request")
	ErrUnknownApp     = serrors.NewError("INTUNE_UNKNOWN_APP", "app is not part of the loaded app list")
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func invalidRequest(format string, args ...any) *ServiceError {
	return newServiceError(http.StatusBadRequest, ErrInvalidRequest.Code, fmt.Sprintf(format, args...), ErrInvalidRequest)
}

type ResolutionReason string

const (
	ReasonNotFound      ResolutionReason = "not_found"
	ReasonAmbiguous     ResolutionReason = "ambiguous"
	ReasonLookupFailed  ResolutionReason = "lookup_failed"
	maxCandidateReports                  = 10
)

var (
	ErrNameNotFound     = errors.New("name not found")
	ErrNameAmbiguous    = errors.New("name is ambiguous")
	ErrNameLookupFailed = errors.New("name lookup failed")
)

// ResolutionError is returned when a typed group or filter name cannot be turned into an id.
type ResolutionError struct {
	Kind       string
	Input      string
	Reason     ResolutionReason
	Candidates []string
	// Status is the remote status of a failed listing, 0 otherwise.
	Status int
	Cause  error
}

func (e *ResolutionError) Error() string {
	switch e.Reason {
	case ReasonAmbiguous:
		return fmt.Sprintf("%s name %q is ambiguous, matches: %s", e.Kind, e.Input, strings.Join(e.Candidates, ", "))
	case ReasonLookupFailed:
		if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
			return fmt.Sprintf("cannot list %ss (status %d): grant DeviceManagementConfiguration.Read.All or paste the %s id", e.Kind, e.Status, e.Kind)
		}
		if e.Status != 0 {
			return fmt.Sprintf("cannot list %ss (status %d): %v", e.Kind, e.Status, e.Cause)
		}
		return fmt.Sprintf("cannot list %ss: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s %q not found", e.Kind, e.Input)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrNameNotFound:
		return e.Reason == ReasonNotFound
	case ErrNameAmbiguous:
		return e.Reason == ReasonAmbiguous
	case ErrNameLookupFailed:
		return e.Reason == ReasonLookupFailed
	}
	return false
}

var errNotReconciled = errors.New("assignment was created in this session and is not yet confirmed by the directory")

var errMissingAssignmentID = errors.New("assignment has no id")

var ErrExclusionFilter = serrors.NewError("INTUNE_EXCLUSION_FILTER", "an exclusion group cannot be combined with an assignment filter")
