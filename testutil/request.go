// Package testutil helpers for driving gin engines and a throwaway redis in tests
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

// DefaultRemoteAddr client address of built requests
const DefaultRemoteAddr = "192.0.2.10:4321"

// RequestBuilder fluent builder for a single request
type RequestBuilder struct {
	method     string
	path       string
	body       io.Reader
	json       bool
	headers    map[string]string
	query      url.Values
	remoteAddr string
}

// NewRequest starts a request for method and path
func NewRequest(method, path string) *RequestBuilder {
	return &RequestBuilder{
		method:     method,
		path:       path,
		headers:    make(map[string]string),
		query:      url.Values{},
		remoteAddr: DefaultRemoteAddr,
	}
}

// WithJSON marshals body; a string is sent verbatim
func (rb *RequestBuilder) WithJSON(body interface{}) *RequestBuilder {
	switch v := body.(type) {
	case string:
		rb.body = strings.NewReader(v)
	default:
		b, _ := json.Marshal(v)
		rb.body = bytes.NewReader(b)
	}
	rb.json = true
	return rb
}

func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithHeaders sets every header in h
func (rb *RequestBuilder) WithHeaders(h map[string]string) *RequestBuilder {
	for k, v := range h {
		rb.headers[k] = v
	}
	return rb
}

func (rb *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	rb.query.Add(key, value)
	return rb
}

// WithRemoteAddr overrides the peer address seen by the server
func (rb *RequestBuilder) WithRemoteAddr(addr string) *RequestBuilder {
	rb.remoteAddr = addr
	return rb
}

// WithTraceID sets X-Trace-ID
func (rb *RequestBuilder) WithTraceID(traceID string) *RequestBuilder {
	return rb.WithHeader("X-Trace-ID", traceID)
}

// Build the *http.Request without sending it
func (rb *RequestBuilder) Build() *http.Request {
	target := rb.path
	if len(rb.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + rb.query.Encode()
	}

	req := httptest.NewRequest(rb.method, target, rb.body)
	req.RemoteAddr = rb.remoteAddr
	if rb.json {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	return req
}

// Do serves the request on handler
func (rb *RequestBuilder) Do(handler http.Handler) *ResponseHelper {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, rb.Build())
	return &ResponseHelper{Recorder: w}
}

// ResponseHelper wraps the recorder
type ResponseHelper struct {
	Recorder *httptest.ResponseRecorder
}

func (rh *ResponseHelper) Status() int {
	return rh.Recorder.Code
}

func (rh *ResponseHelper) Body() string {
	return rh.Recorder.Body.String()
}

func (rh *ResponseHelper) Header(key string) string {
	return rh.Recorder.Header().Get(key)
}

// JSON decodes the body into v
func (rh *ResponseHelper) JSON(v interface{}) error {
	return json.Unmarshal(rh.Recorder.Body.Bytes(), v)
}

// Envelope the {code, msg, data} body written by httpx
type Envelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

// Envelope decodes the body as an httpx response
func (rh *ResponseHelper) Envelope() (Envelope, error) {
	var env Envelope
	err := rh.JSON(&env)
	return env, err
}

func GET(path string) *RequestBuilder {
	return NewRequest(http.MethodGet, path)
}

func POST(path string) *RequestBuilder {
	return NewRequest(http.MethodPost, path)
}

func DELETE(path string) *RequestBuilder {
	return NewRequest(http.MethodDelete, path)
}
