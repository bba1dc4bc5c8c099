package graph

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
)

const getByIDsChunk = 100

func toNamedObjects(items []namedObjectDTO) []domain.NamedObject {
	out := make([]domain.NamedObject, 0, len(items))
	for _, it := range items {
		out = append(out, it.toDomain())
	}
	return out
}

// SearchGroupsByPrefix returns a single page; it backs typeahead suggestions.
func (c *Client) SearchGroupsByPrefix(ctx context.Context, prefix string, limit int) ([]domain.NamedObject, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName")
	q.Set("$top", strconv.Itoa(limit))
	q.Set("$filter", "startswith(displayName,"+odataLiteral(prefix)+")")

	var p page[namedObjectDTO]
	if err := c.doJSON(ctx, request{
		op:      "search_groups_prefix",
		method:  http.MethodGet,
		version: domain.APIV1,
		path:    "/groups",
		query:   q,
	}, &p); err != nil {
		return nil, errors.Wrap(err, "search groups by prefix")
	}
	return toNamedObjects(p.Value), nil
}

func (c *Client) FindGroupsByName(ctx context.Context, name string) ([]domain.NamedObject, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName")
	q.Set("$filter", "displayName eq "+odataLiteral(name))

	items, err := listAll[namedObjectDTO](ctx, c, request{
		op:      "find_groups_by_name",
		method:  http.MethodGet,
		version: domain.APIV1,
		path:    "/groups",
		query:   q,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "find groups by name")
	}
	return toNamedObjects(items), nil
}

// SearchGroups uses tokenized $search, which needs the eventual consistency header.
func (c *Client) SearchGroups(ctx context.Context, text string) ([]domain.NamedObject, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName")
	q.Set("$top", "100")
	q.Set("$search", `"displayName:`+strings.ReplaceAll(text, `"`, ``)+`"`)

	items, err := listAll[namedObjectDTO](ctx, c, request{
		op:      "search_groups",
		method:  http.MethodGet,
		version: domain.APIV1,
		path:    "/groups",
		query:   q,
		header:  http.Header{"ConsistencyLevel": []string{"eventual"}},
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "search groups")
	}
	return toNamedObjects(items), nil
}

type getByIDsRequest struct {
	IDs   []string `json:"ids"`
	Types []string `json:"types"`
}

// ResolveGroupNames posts ids in chunks of 100, the directory's per-call maximum.
func (c *Client) ResolveGroupNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += getByIDsChunk {
		end := min(start+getByIDsChunk, len(ids))
		var p page[namedObjectDTO]
		if err := c.doJSON(ctx, request{
			op:      "get_by_ids",
			method:  http.MethodPost,
			version: domain.APIV1,
			path:    "/directoryObjects/getByIds",
			body:    getByIDsRequest{IDs: ids[start:end], Types: []string{"group"}},
		}, &p); err != nil {
			return nil, errors.Wrap(err, "resolve group names")
		}
		for _, it := range p.Value {
			if it.ID != "" {
				out[it.ID] = it.DisplayName
			}
		}
	}
	return out, nil
}
