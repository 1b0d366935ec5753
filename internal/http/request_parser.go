// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"receipts/internal/core"
)

// DefaultMaxBodyBytes bounds request bodies; insight requests carry whole receipt lists.
const DefaultMaxBodyBytes = 5 << 20

var (
	errInvalidJSON    = core.NewClientError("invalid_json", "Invalid JSON body")
	errNotAnObject    = core.NewClientError("invalid_json", "Request body must be a JSON object")
	errBodyTooLarge   = core.NewClientError("body_too_large", "Request body too large")
	errInvalidLimit   = core.NewClientError("invalid_limit", "limit must be a positive integer")
	errUnreadableBody = core.NewClientError("invalid_body", "Request body could not be read")
)

// RequestBodyParser reads a request body once and decodes it on demand.
type RequestBodyParser struct {
	body []byte
	err  error
}

// NewRequestBodyParser reads at most maxBytes of the body. maxBytes <= 0 means DefaultMaxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, maxBytes int64) *RequestBodyParser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = errBodyTooLarge
		} else {
			p.err = errUnreadableBody
		}
	}
	return p
}

// IsEmpty reports whether the body was absent or whitespace only.
func (p *RequestBodyParser) IsEmpty() bool {
	return len(bytes.TrimSpace(p.body)) == 0
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (p *RequestBodyParser) Decode(v any) error {
	if p.err != nil {
		return p.err
	}
	if p.IsEmpty() {
		return nil
	}
	if err := json.Unmarshal(p.body, v); err != nil {
		return errInvalidJSON
	}
	return nil
}

// Record decodes the body as a JSON object. An empty body or a JSON null
// yields an empty record.
func (p *RequestBodyParser) Record() (core.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.IsEmpty() {
		return core.Record{}, nil
	}
	trimmed := bytes.TrimSpace(p.body)
	if trimmed[0] != '{' && !bytes.Equal(trimmed, []byte("null")) {
		return nil, errNotAnObject
	}
	var rec core.Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, errInvalidJSON
	}
	if rec == nil {
		rec = core.Record{}
	}
	return rec, nil
}

// QueryLimit parses a positive integer query parameter, clamped to max.
// Absent means def.
func QueryLimit(query url.Values, key string, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// QueryString returns a sanitized query parameter.
func QueryString(query url.Values, key string) string {
	return sanitizeInput(query.Get(key))
}
