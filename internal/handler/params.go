package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// queryParams collects field errors while reading optional query values.
type queryParams struct {
	r    *http.Request
	errs []FieldError
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) date(name string) *time.Time {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		q.errs = append(q.errs, FieldError{Field: name, Message: "must be a date in YYYY-MM-DD format"})
		return nil
	}
	return &d
}

func (q *queryParams) requiredDate(name string) time.Time {
	if q.r.URL.Query().Get(name) == "" {
		q.errs = append(q.errs, FieldError{Field: name, Message: "required"})
		return time.Time{}
	}
	if d := q.date(name); d != nil {
		return *d
	}
	return time.Time{}
}

func (q *queryParams) id(name string) *uuid.UUID {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.errs = append(q.errs, FieldError{Field: name, Message: "must be a valid UUID"})
		return nil
	}
	return &id
}

func (q *queryParams) flag(name string) bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs = append(q.errs, FieldError{Field: name, Message: "must be true or false"})
	}
	return b
}

func (q *queryParams) text(name string) *string {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}

func parseDate(field, raw string, errs []FieldError) (time.Time, []FieldError) {
	if raw == "" {
		return time.Time{}, append(errs, FieldError{Field: field, Message: "required"})
	}
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, append(errs, FieldError{Field: field, Message: "must be a date in YYYY-MM-DD format"})
	}
	return d, errs
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
