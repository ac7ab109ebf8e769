package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=a,-b`, keeping only the allowed fields.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// queryParams parses typed query parameters, keeping the first error.
type queryParams struct {
	ctx echo.Context
	err error
}

func newQueryParams(ctx echo.Context) *queryParams {
	return &queryParams{ctx: ctx}
}

func (q *queryParams) String(name string) string {
	return core.CleanString(q.ctx.QueryParam(name))
}

// Strings returns all the values of a repeated parameter.
func (q *queryParams) Strings(name string) []string {
	return q.ctx.QueryParams()[name]
}

func (q *queryParams) Bool(name string) *bool {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be a boolean")
		return nil
	}
	return &b
}

func (q *queryParams) Int64(name string) *int64 {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.fail(name, "must be an integer")
		return nil
	}
	return &i
}

// Time parses an RFC 3339 timestamp and returns it in UTC.
func (q *queryParams) Time(name string) time.Time {
	raw := q.String(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.fail(name, "must be an RFC 3339 date-time")
		return time.Time{}
	}
	return t.UTC()
}

func (q *queryParams) fail(name, msg string) {
	if q.err == nil {
		q.err = core.NewFieldError(name, msg)
	}
}

func (q *queryParams) Err() error {
	return q.err
}
