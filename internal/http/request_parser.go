package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cuipo/internal/dashboard"
	"cuipo/internal/present"
)

// maxBodyBytes bounds a selection payload.
const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser reads a JSON or form-encoded body once and serves field
// lookups from it.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads up to maxBodyBytes of r's body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like JSON, as a form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}
	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
		}
		return p.err
	}
	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns the sanitized value of key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool reports whether key holds a truthy value ("true", "1", "on").
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// loadRequest is a parsed operation request.
type loadRequest struct {
	Selection dashboard.Selection
	Scale     present.Scale
}

// parseLoadRequest reads the selection fields shared by every operation:
// entity_code or department+entity, period_code or period, account, and
// the millions display flag.
func parseLoadRequest(r *http.Request) (loadRequest, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return loadRequest{}, err
	}
	req := loadRequest{
		Selection: dashboard.Selection{
			EntityCode:  p.Get("entity_code"),
			Department:  p.Get("department"),
			EntityName:  p.Get("entity"),
			PeriodCode:  p.Get("period_code"),
			PeriodLabel: p.Get("period"),
			AccountName: p.Get("account"),
		},
		Scale: present.Pesos,
	}
	if p.Bool("millions") {
		req.Scale = present.Millions
	}
	return req, nil
}

// scaleFromQuery reads the millions flag of export and catalog requests.
func scaleFromQuery(q url.Values) present.Scale {
	switch strings.ToLower(strings.TrimSpace(q.Get("millions"))) {
	case "true", "1", "on", "yes":
		return present.Millions
	}
	return present.Pesos
}
