/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package werror carries the runtime's tagged failure value: an HTTP status
// code, optional reason-phrase and body overrides, a header set applied
// wholesale to the response, and - where the raising subsystem sets one - a
// stable CodeError independent of the HTTP status it renders as.
package werror

import (
	"fmt"

	"github/sabouaram/webd/header"
)

// Error is a failure carrier consumed exactly once by the response writer.
// It implements the standard error interface so it can travel through
// ordinary Go error-handling paths, while exposing the extra fields the
// response pipeline needs to render it.
type Error struct {
	// StatusCode is the HTTP status the response writer renders.
	StatusCode int

	// StatusMessage overrides the default reason phrase for StatusCode, when
	// non-empty.
	StatusMessage string

	// Body overrides the default "<code> - <reason>\n" response body, when
	// non-nil. May be a []byte or string.
	Body any

	// Headers replace the response's header set wholesale when non-nil.
	Headers *header.Map

	// Internal, if non-zero, is this failure's stable internal code,
	// independent of StatusCode.
	Internal CodeError

	// Parent is the lower-level error this one wraps, if any.
	Parent error
}

// New returns an Error carrying status as its HTTP status code, with no
// header, body or reason-phrase override.
func New(status int) *Error {
	return &Error{StatusCode: status}
}

// Newf returns a 500 Error whose Parent is a formatted error, with Internal
// set to code. Used by subsystems raising an unexpected internal failure.
func Newf(code CodeError, format string, args ...any) *Error {
	return &Error{
		StatusCode: 500,
		Internal:   code,
		Parent:     fmt.Errorf(format, args...),
	}
}

// Wrap returns an Error with the given status and internal code, wrapping
// parent.
func Wrap(status int, code CodeError, parent error) *Error {
	return &Error{
		StatusCode: status,
		Internal:   code,
		Parent:     parent,
	}
}

// WithStatusMessage sets the reason-phrase override and returns e for
// chaining.
func (e *Error) WithStatusMessage(msg string) *Error {
	e.StatusMessage = msg
	return e
}

// WithBody sets the body override and returns e for chaining.
func (e *Error) WithBody(body any) *Error {
	e.Body = body
	return e
}

// WithHeaders sets the replacement header set and returns e for chaining.
func (e *Error) WithHeaders(h *header.Map) *Error {
	e.Headers = h
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Internal != 0 {
		if e.Parent != nil {
			return fmt.Sprintf("[%d/%s] %d: %s", e.Internal, e.Internal.Message(), e.StatusCode, e.Parent.Error())
		}
		return fmt.Sprintf("[%d/%s] %d", e.Internal, e.Internal.Message(), e.StatusCode)
	}

	if e.Parent != nil {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Parent.Error())
	}

	return fmt.Sprintf("%d", e.StatusCode)
}

// Unwrap exposes Parent to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Parent
}

// Is reports whether err is an *Error, returning it when it is.
func Is(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
