package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
)

// QueryBuilder assembles a PostgREST query. Filters are kept in the
// order they were added so request URLs are stable for tests.
type QueryBuilder struct {
	client     *Client
	table      string
	selectCols string
	filters    []filter
	orderBy    string
	limitCount int
}

type filter struct {
	column string
	op     string
	value  string
}

// Select sets the column list to return
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.selectCols = columns
	return q
}

// Eq filters on column equality
func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	q.filters = append(q.filters, filter{column, "eq", value})
	return q
}

// Gte filters on column >= value
func (q *QueryBuilder) Gte(column, value string) *QueryBuilder {
	q.filters = append(q.filters, filter{column, "gte", value})
	return q
}

// Lt filters on column < value
func (q *QueryBuilder) Lt(column, value string) *QueryBuilder {
	q.filters = append(q.filters, filter{column, "lt", value})
	return q
}

// Lte filters on column <= value
func (q *QueryBuilder) Lte(column, value string) *QueryBuilder {
	q.filters = append(q.filters, filter{column, "lte", value})
	return q
}

// In filters on column membership
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	q.filters = append(q.filters, filter{column, "in", "(" + strings.Join(values, ",") + ")"})
	return q
}

// Order sets the sort column. desc of true sorts descending.
func (q *QueryBuilder) Order(column string, desc bool) *QueryBuilder {
	q.orderBy = column + ".asc"
	if desc {
		q.orderBy = column + ".desc"
	}
	return q
}

// Limit caps the number of rows returned
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitCount = n
	return q
}

// Get executes the query and decodes the row list into out
func (q *QueryBuilder) Get(ctx context.Context, out interface{}) error {
	return q.client.do(ctx, http.MethodGet, q.url(), nil, "", out)
}

// Single executes the query limited to one row. It reports whether a
// row was found; no row is not an error.
func (q *QueryBuilder) Single(ctx context.Context, out interface{}) (bool, error) {
	q.limitCount = 1

	var raw []json.RawMessage
	if err := q.client.do(ctx, http.MethodGet, q.url(), nil, "", &raw); err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw[0], out); err != nil {
		return false, errs.Newf(errs.ErrorTypeParsing, 0, "failed to decode row: %v", err)
	}
	return true, nil
}

// Update patches the rows matched by the filters. When out is non-nil
// the updated rows are decoded into it.
func (q *QueryBuilder) Update(ctx context.Context, patch interface{}, out interface{}) error {
	if len(q.filters) == 0 {
		return errs.New(errs.ErrorTypeValidation, 0, "refusing to update without filters")
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return errs.Newf(errs.ErrorTypeParsing, 0, "failed to encode patch: %v", err)
	}

	return q.client.do(ctx, http.MethodPatch, q.url(), body, "return=representation", out)
}

// Delete removes the rows matched by the filters
func (q *QueryBuilder) Delete(ctx context.Context) error {
	if len(q.filters) == 0 {
		return errs.New(errs.ErrorTypeValidation, 0, "refusing to delete without filters")
	}
	return q.client.do(ctx, http.MethodDelete, q.url(), nil, "", nil)
}

func (q *QueryBuilder) url() string {
	params := url.Values{}
	if q.selectCols != "" {
		params.Set("select", q.selectCols)
	}
	for _, f := range q.filters {
		params.Add(f.column, fmt.Sprintf("%s.%s", f.op, f.value))
	}
	if q.orderBy != "" {
		params.Set("order", q.orderBy)
	}
	if q.limitCount > 0 {
		params.Set("limit", strconv.Itoa(q.limitCount))
	}

	u := q.client.baseURL + "/" + q.table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
