package siad

import (
	"net/http"
	"net/url"
	"time"
)

// CallSpec describes one API request. It is either a Path, shorthand for a GET
// with no parameters, or a full Request.
type CallSpec interface {
	request() Request
}

// Path is a bare endpoint path such as "/consensus", sent as a GET.
type Path string

func (p Path) request() Request {
	return Request{Method: http.MethodGet, Path: string(p)}
}

// Request is a fully specified API call.
//
// Query is always appended to the URL. Form is sent as an
// application/x-www-form-urlencoded body, the way siad reads POST parameters.
// Body, when non-nil, is JSON encoded and takes precedence over Form.
// Timeout overrides the client's call timeout for this request only.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	Body    any
	Timeout time.Duration
}

func (r Request) request() Request {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	return r
}

// Get is a GET request with query parameters.
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// Post is a POST request with form parameters.
func Post(path string, form url.Values) Request {
	return Request{Method: http.MethodPost, Path: path, Form: form}
}
