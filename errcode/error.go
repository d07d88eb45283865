// Package errcode numeric error codes returned by the limiter's HTTP surface.
//
// A code is module*10000 + detail, so 420001 is detail 1 of module 42. Every
// code maps to one HTTP status; the client sees the code and message, the
// wrapped cause only reaches the logs.
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError coded error; values are immutable and the With* methods derive copies
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New builds a code from moduleCode (10-99) and businessCode (1-9999).
// The status defaults to 200.
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	e := &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: http.StatusOK,
	}
	if len(httpStatus) > 0 {
		e.httpStatus = httpStatus[0]
	}
	return e
}

// derive copies e, lets mutate edit the copy and returns it
func (e *LayeredError) derive(mutate func(c *LayeredError)) *LayeredError {
	c := *e
	if len(e.data) > 0 {
		c.data = make(map[string]interface{}, len(e.data))
		for k, v := range e.data {
			c.data[k] = v
		}
	}
	mutate(&c)
	return &c
}

func (e *LayeredError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *LayeredError) Code() int          { return e.code }
func (e *LayeredError) Module() string     { return e.module }
func (e *LayeredError) MsgKey() string     { return e.msgKey }
func (e *LayeredError) Message() string    { return e.msg }
func (e *LayeredError) HTTPStatus() int    { return e.httpStatus }
func (e *LayeredError) Cause() error       { return e.cause }
func (e *LayeredError) Unwrap() error      { return e.cause }

// Data extra fields rendered into the response body; nil when there are none
func (e *LayeredError) Data() map[string]interface{} { return e.data }

// Is matches by code, so a wrapped or reworded error still equals its definition
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	return ok && t.code == e.code
}

func (e *LayeredError) WithMsg(msg string) *LayeredError {
	return e.derive(func(c *LayeredError) { c.msg = msg })
}

func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	return e.WithFields(map[string]interface{}{key: value})
}

func (e *LayeredError) WithFields(fields map[string]interface{}) *LayeredError {
	return e.derive(func(c *LayeredError) {
		if c.data == nil {
			c.data = make(map[string]interface{}, len(fields))
		}
		for k, v := range fields {
			c.data[k] = v
		}
	})
}

func (e *LayeredError) WithHTTPStatus(status int) *LayeredError {
	return e.derive(func(c *LayeredError) { c.httpStatus = status })
}

// Wrap attaches cause; Wrap(nil) returns e unchanged
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	return e.derive(func(c *LayeredError) { c.cause = cause })
}

// Wrapf attaches cause and replaces the message
func (e *LayeredError) Wrapf(cause error, format string, args ...interface{}) *LayeredError {
	return e.derive(func(c *LayeredError) {
		c.msg = fmt.Sprintf(format, args...)
		c.cause = cause
	})
}

// String debug form, e.g. [420001 ratelimit] Rate limit exceeded
func (e *LayeredError) String() string {
	s := fmt.Sprintf("[%d %s] %s", e.code, e.module, e.msg)
	if e.cause != nil {
		s += " (cause: " + e.cause.Error() + ")"
	}
	return s
}
