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

package werror

// CodeError is a numeric internal error code, independent of the HTTP status
// the error ultimately renders as. Each subsystem owns a reserved block so
// the same code value never means two different things in the logs.
type CodeError uint16

// Reserved blocks, one per subsystem, mirroring this module's package split.
const (
	MinPkgRequest CodeError = (iota + 1) * 100
	MinPkgResponse
	MinPkgGate
	MinPkgRouter
	MinPkgHandler
	MinPkgPool
	MinPkgServer
	MinPkgConfig
)

// Request parser codes.
const (
	ErrLineTooLong CodeError = MinPkgRequest + iota
	ErrLineMalformed
	ErrRequestLineArity
	ErrUnsupportedVersion
	ErrHeaderTooLong
	ErrTooManyHeaders
	ErrHeaderMalformed
	ErrBodyTooLarge
	ErrNoRoute
)

// Handler dispatch codes.
const (
	ErrMethodNotAllowed CodeError = MinPkgHandler + iota
	ErrContinueRejected
)

// Resource gate codes.
const (
	ErrGateReleaseWithoutAcquire CodeError = MinPkgGate + iota
)

// Worker pool codes.
const (
	ErrPoolFull CodeError = MinPkgPool + iota
	ErrPoolStopped
)

// Server shell / config codes.
const (
	ErrPortInUse CodeError = MinPkgServer + iota
	ErrTLSConfigure
)

const (
	ErrConfigInvalid CodeError = MinPkgConfig + iota
)

var messages = map[CodeError]string{
	ErrLineTooLong:               "request line exceeds maximum line size",
	ErrLineMalformed:             "line does not end in CRLF",
	ErrRequestLineArity:          "request line does not split into method, resource and version",
	ErrUnsupportedVersion:        "unsupported HTTP version",
	ErrHeaderTooLong:             "header line exceeds maximum line size",
	ErrTooManyHeaders:            "too many headers",
	ErrHeaderMalformed:           "header line malformed",
	ErrBodyTooLarge:              "declared content length exceeds maximum request size",
	ErrNoRoute:                   "no route matches the request resource",
	ErrMethodNotAllowed:          "handler has no operation for the requested method",
	ErrContinueRejected:          "check continue rejected the request",
	ErrGateReleaseWithoutAcquire: "resource gate released without a matching acquire",
	ErrPoolFull:                  "worker pool queue is full",
	ErrPoolStopped:               "worker pool is stopped",
	ErrPortInUse:                 "listen address is already in use",
	ErrTLSConfigure:              "failed to build TLS configuration",
	ErrConfigInvalid:             "configuration failed validation",
}

// Message returns the registered human-readable description of code, or the
// empty string if none was registered.
func (c CodeError) Message() string {
	return messages[c]
}

// String implements fmt.Stringer, returning the decimal code.
func (c CodeError) String() string {
	return itoa(uint16(c))
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}

	var buf [5]byte
	i := len(buf)

	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return string(buf[i:])
}
