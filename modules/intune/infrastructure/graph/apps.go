package graph

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
)

// ListApps pages through managed apps and stops at the configured ceiling.
func (c *Client) ListApps(ctx context.Context) ([]app.App, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(c.appsPageSize))
	limit := c.appsLimit
	items, err := listAll[mobileAppDTO](ctx, c, request{
		op:      "list_apps",
		method:  http.MethodGet,
		version: domain.APIBeta,
		path:    "/deviceAppManagement/mobileApps",
		query:   q,
	}, func(n int) bool { return n >= limit })
	if err != nil {
		return nil, errors.Wrap(err, "list apps")
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]app.App, 0, len(items))
	for _, it := range items {
		out = append(out, it.toEntity())
	}
	return out, nil
}

func assignmentsPath(appID string) string {
	return "/deviceAppManagement/mobileApps/" + url.PathEscape(appID) + "/assignments"
}

func (c *Client) ListAssignments(ctx context.Context, appID string) ([]assignment.Assignment, error) {
	q := url.Values{}
	q.Set("$select", "id,intent,target")
	items, err := listAll[assignmentDTO](ctx, c, request{
		op:      "list_assignments",
		method:  http.MethodGet,
		version: domain.APIBeta,
		path:    assignmentsPath(appID),
		query:   q,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list assignments of app %s", appID)
	}
	out := make([]assignment.Assignment, 0, len(items))
	for _, it := range items {
		out = append(out, it.toDomain())
	}
	return out, nil
}

func (c *Client) CreateAssignment(ctx context.Context, appID string, intent assignment.Intent, target assignment.Target) error {
	body := createAssignmentDTO{
		ODataType: typeMobileAppAssignment,
		Intent:    intent.String(),
		Target:    targetToDTO(target),
	}
	err := c.doJSON(ctx, request{
		op:      "create_assignment",
		method:  http.MethodPost,
		version: domain.APIV1,
		path:    assignmentsPath(appID),
		body:    body,
	}, nil)
	if err != nil {
		return errors.Wrapf(err, "create assignment on app %s", appID)
	}
	return nil
}

func (c *Client) DeleteAssignment(ctx context.Context, appID, assignmentID string) error {
	err := c.doJSON(ctx, request{
		op:      "delete_assignment",
		method:  http.MethodDelete,
		version: domain.APIV1,
		path:    assignmentsPath(appID) + "/" + url.PathEscape(assignmentID),
	}, nil)
	if err != nil {
		return errors.Wrapf(err, "delete assignment %s of app %s", assignmentID, appID)
	}
	return nil
}
