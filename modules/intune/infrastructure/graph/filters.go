package graph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
)

// ListAssignmentFilters lists every filter of one endpoint family, de-duplicated by id.
func (c *Client) ListAssignmentFilters(ctx context.Context, version domain.APIVersion) ([]domain.NamedObject, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName")
	q.Set("$top", "100")

	items, err := listAll[namedObjectDTO](ctx, c, request{
		op:      "list_filters_" + string(version),
		method:  http.MethodGet,
		version: version,
		path:    "/deviceManagement/assignmentFilters",
		query:   q,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list assignment filters (%s)", version)
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]domain.NamedObject, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it.toDomain())
	}
	return out, nil
}
