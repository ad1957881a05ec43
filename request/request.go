/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package request reads one HTTP/1.1 request line and header block off a
// connection. It never constructs a handler and never touches the wire
// beyond reading: any protocol-level failure it detects is returned to the
// caller as a *werror.Error for the response pipeline to render, so the
// response writer remains the sole writer to the socket. This also keeps
// the package free of an import on handler/response/router, which would
// otherwise close an import cycle through those packages' dependency on
// *request.Request.
package request

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github/sabouaram/webd/header"
	"github/sabouaram/webd/werror"
)

// Bounds from the distilled protocol's parser. These are the
// defaults a Request falls back to; a caller wiring a server configuration
// overrides any of them with WithLimits.
const (
	MaxLineSize    = 4096
	MaxHeaders     = 64
	MaxRequestSize = 1 << 20
)

// Request is one request/response iteration's worth of state, owned by a
// single connection for its lifetime; never shared across workers.
type Request struct {
	conn           net.Conn
	clientAddr     string
	serverName     string
	requestTimeout time.Duration
	rfile          *bufio.Reader

	maxLineSize    int
	maxHeaders     int
	maxRequestSize int

	keepaliveDefault bool
	keepalive        bool

	method      string
	resource    string
	requestLine string
	headers     *header.Map
	body        []byte
}

// Option overrides one of New's defaults.
type Option func(*Request)

// WithLimits overrides the request-line, header-count and body-size bounds
// Parse/ReadBody enforce. A zero value leaves the corresponding default
// (MaxLineSize/MaxHeaders/MaxRequestSize) in place, so a partially
// configured server only needs to override the bounds it cares about.
func WithLimits(maxLineSize, maxHeaders, maxRequestSize int) Option {
	return func(r *Request) {
		if maxLineSize > 0 {
			r.maxLineSize = maxLineSize
		}
		if maxHeaders > 0 {
			r.maxHeaders = maxHeaders
		}
		if maxRequestSize > 0 {
			r.maxRequestSize = maxRequestSize
		}
	}
}

// New wraps conn for request reading. serverName is echoed into the Server
// response header by the caller, not by this package. keepaliveDefault is
// the value Keepalive() holds right after a successful parse, before any
// "Connection: close" header is observed.
func New(conn net.Conn, clientAddr, serverName string, requestTimeout time.Duration, keepaliveDefault bool, opts ...Option) *Request {
	r := &Request{
		conn:             conn,
		clientAddr:       clientAddr,
		serverName:       serverName,
		requestTimeout:   requestTimeout,
		keepaliveDefault: keepaliveDefault,
		headers:          header.New(),
		maxLineSize:      MaxLineSize,
		maxHeaders:       MaxHeaders,
		maxRequestSize:   MaxRequestSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.rfile = bufio.NewReaderSize(conn, r.maxLineSize*2)

	return r
}

func (r *Request) Conn() net.Conn          { return r.conn }
func (r *Request) ClientAddr() string      { return r.clientAddr }
func (r *Request) ServerName() string      { return r.serverName }
func (r *Request) Method() string          { return r.method }
func (r *Request) Resource() string        { return r.resource }
func (r *Request) RequestLine() string     { return r.requestLine }
func (r *Request) Headers() *header.Map    { return r.headers }
func (r *Request) Body() []byte            { return r.body }
func (r *Request) Keepalive() bool         { return r.keepalive }
func (r *Request) SetKeepalive(keep bool)  { r.keepalive = keep }
func (r *Request) SetMethod(method string) { r.method = method }

// Close releases the buffered reader's underlying connection.
func (r *Request) Close() error {
	return r.conn.Close()
}

// Parse runs the ten-step read sequence for one request line and header
// block. initialTimeout, when non-zero, is the keep-alive wait applied
// before the first byte of the request line arrives; once a byte is read
// the normal requestTimeout takes over for the remainder of the request.
//
// ok reports whether the connection should continue to be served at all:
// false means a silent abort (low-level read failure, timeout, or the
// client closing before sending anything) and the caller must close the
// connection without writing any response. When ok is true and err is
// non-nil, a protocol-level error was detected (414/400/505/431) that the
// caller renders through the response pipeline rather than raising inline.
func (r *Request) Parse(initialTimeout time.Duration) (ok bool, err *werror.Error) {
	r.headers.Clear()
	r.body = nil
	r.keepalive = r.keepaliveDefault

	if initialTimeout > 0 {
		_ = r.conn.SetReadDeadline(time.Now().Add(initialTimeout))
	} else {
		_ = r.conn.SetReadDeadline(time.Now().Add(r.requestTimeout))
	}

	line, oversize, readErr := r.readBoundedLine()
	if readErr != nil {
		return false, nil
	}
	if len(line) == 0 {
		return false, nil
	}

	_ = r.conn.SetReadDeadline(time.Now().Add(r.requestTimeout))
	r.keepalive = r.keepaliveDefault

	// Record the line and clear the prior request's method/resource before
	// any validation runs, so a failure below never leaks stale values from
	// an earlier request on this same keep-alive connection into the access
	// log or into gate/error dispatch.
	r.requestLine = strings.TrimSuffix(line, "\r\n")
	r.method = ""
	r.resource = ""

	if oversize {
		return true, werror.New(414).WithStatusMessage("Request-URI Too Long")
	}

	if !strings.HasSuffix(line, "\r\n") {
		return true, werror.New(400).WithStatusMessage("Bad Request")
	}

	fields := strings.Fields(r.requestLine)
	if len(fields) != 3 {
		return true, werror.New(400).WithStatusMessage("Bad Request")
	}

	r.method = fields[0]
	r.resource = fields[1]

	if fields[2] != "HTTP/1.1" {
		return true, werror.New(505).WithStatusMessage("HTTP Version Not Supported")
	}

	if err := r.readHeaders(); err != nil {
		return true, err
	}

	if v, ok := r.headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		r.keepalive = false
	}

	return true, nil
}

func (r *Request) readHeaders() *werror.Error {
	count := 0
	for {
		line, oversize, readErr := r.readBoundedLine()
		if readErr != nil {
			return werror.New(400).WithStatusMessage("Bad Request")
		}

		if line == "\r\n" {
			return nil
		}

		fieldName := line
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			fieldName = line[:idx]
		}

		if oversize || count >= r.maxHeaders {
			return werror.New(431).WithStatusMessage(fieldName + " Header Too Large")
		}

		if !strings.HasSuffix(line, "\r\n") || !strings.Contains(line, ":") {
			return werror.New(400).WithStatusMessage("Bad Request")
		}

		if err := r.headers.Add(line); err != nil {
			return werror.New(400).WithStatusMessage("Bad Request")
		}

		count++
	}
}

// readBoundedLine reads one line bounded to maxLineSize+1 bytes, decoding
// it as Latin-1: every byte 0x00-0xFF maps 1:1 to the rune of the same
// value, which is exactly what a raw []byte-to-string cast already gives,
// so no transcoding library is involved.
func (r *Request) readBoundedLine() (line string, oversize bool, err error) {
	buf := make([]byte, 0, 128)

	for len(buf) < r.maxLineSize+1 {
		b, readErr := r.rfile.ReadByte()
		if readErr != nil {
			if len(buf) == 0 {
				return "", false, readErr
			}
			return string(buf), false, nil
		}

		buf = append(buf, b)
		if b == '\n' {
			return string(buf), false, nil
		}
	}

	// Cap reached without a newline: drain until one is found (or the
	// connection fails) so the next read starts at a line boundary, then
	// report the line as oversize.
	for {
		b, readErr := r.rfile.ReadByte()
		if readErr != nil {
			break
		}
		if b == '\n' {
			break
		}
	}

	return string(buf), true, nil
}

// ReadBody reads exactly the declared Content-Length bytes into the
// request body, bounded by the maxRequestSize this Request was built with.
// It is invoked by the handler layer, not during Parse, since only the
// matched handler's GetBody() decides whether a body is expected.
func (r *Request) ReadBody() *werror.Error {
	raw, ok := r.headers.Get("Content-Length")
	if !ok {
		return nil
	}

	n, convErr := parseContentLength(raw, r.maxRequestSize)
	if convErr != nil {
		return werror.New(400).WithStatusMessage("Bad Request")
	}

	if n > r.maxRequestSize {
		return werror.New(413).WithStatusMessage("Request Entity Too Large")
	}

	if n == 0 {
		r.body = nil
		return nil
	}

	body := make([]byte, n)
	if _, err := readFull(r.rfile, body); err != nil {
		return werror.New(400).WithStatusMessage("Bad Request")
	}

	r.body = body
	return nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseContentLength(s string, limit int) (int, error) {
	s = strings.TrimSpace(s)
	n := 0
	if s == "" {
		return 0, errNotANumber
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		n = n*10 + int(c-'0')
		if n > limit {
			return n, nil
		}
	}
	return n, nil
}

var errNotANumber = notANumberErr{}

type notANumberErr struct{}

func (notANumberErr) Error() string { return "content-length is not a number" }
