package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/i18n"
)

// maxJSONBody bounds JSON request bodies; file uploads use their own limit
const maxJSONBody = 1 << 20

// Response is the envelope of every JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta carries pagination for list responses
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON sends data in the success envelope
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data})
}

// JSONWithMeta sends a page of data with its pagination
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data, Meta: meta})
}

// ErrorLocalized renders err in the request locale. Errors that are not
// AppErrors become a generic 500 so internals never leak.
func ErrorLocalized(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		write(w, http.StatusInternalServerError, Response{Error: &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: i18n.TFromContext(r.Context(), "errors.internal"),
		}})
		return
	}

	write(w, appErr.StatusCode, Response{Error: &ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Localize(r.Context()),
		Details: appErr.Details,
	}})
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSONLocalized decodes a single JSON value from the request body.
// Oversized bodies and trailing data are rejected.
func DecodeJSONLocalized(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return errors.BadRequest(i18n.TFromContext(r.Context(), "errors.invalid_json"))
	}
	if dec.More() {
		return errors.BadRequest(i18n.TFromContext(r.Context(), "errors.invalid_json"))
	}
	return nil
}

// Page holds the pagination parameters of a list request
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the SQL offset for the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta builds response metadata for a total row count
func (p Page) Meta(total int64) *Meta {
	totalPages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		totalPages++
	}
	return &Meta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: totalPages}
}

// ParsePage reads page/per_page query parameters (defaults 1 and 20, max 100)
func ParsePage(r *http.Request) Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return Page{Page: page, PerPage: perPage}
}

// ParseDateRange reads from/to query parameters as YYYY-MM-DD dates.
// Missing bounds default to the last 30 days; to is exclusive (end of the given day).
func ParseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, errors.Validation(map[string]string{"from": "must be a date (YYYY-MM-DD)"})
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, errors.Validation(map[string]string{"to": "must be a date (YYYY-MM-DD)"})
		}
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.Validation(map[string]string{"from": "must be before to"})
	}

	return from, to, nil
}
