package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
)

// NamedObject is an (id, display name) pair for groups and assignment filters.
type NamedObject struct {
	ID          string
	DisplayName string
}

// APIVersion selects a directory endpoint family.
type APIVersion string

const (
	APIBeta APIVersion = "beta"
	APIV1   APIVersion = "v1.0"
)

// DirectoryClient is the port to the remote directory that owns apps, assignments,
// groups and assignment filters.
type DirectoryClient interface {
	ListApps(ctx context.Context) ([]app.App, error)
	ListAssignments(ctx context.Context, appID string) ([]assignment.Assignment, error)
	CreateAssignment(ctx context.Context, appID string, intent assignment.Intent, target assignment.Target) error
	DeleteAssignment(ctx context.Context, appID, assignmentID string) error

	// SearchGroupsByPrefix returns at most limit groups whose name starts with prefix.
	SearchGroupsByPrefix(ctx context.Context, prefix string, limit int) ([]NamedObject, error)
	// FindGroupsByName returns the groups whose display name equals name.
	FindGroupsByName(ctx context.Context, name string) ([]NamedObject, error)
	// SearchGroups returns every group whose display name contains the tokens of text.
	SearchGroups(ctx context.Context, text string) ([]NamedObject, error)
	// ResolveGroupNames maps group ids to display names. Unknown ids are absent from the result.
	ResolveGroupNames(ctx context.Context, ids []string) (map[string]string, error)

	ListAssignmentFilters(ctx context.Context, version APIVersion) ([]NamedObject, error)
}

// RemoteError is a non-success response of the directory, with the body kept verbatim.
type RemoteError struct {
	Operation string
	Status    int
	Body      string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Body)
}

// StatusOf returns the HTTP status of the first RemoteError in err's chain, or 0.
func StatusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func IsPermissionDenied(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}
