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

// Package response serialises a handler's return value into a valid
// HTTP/1.1 response: status line, headers, and a body that is either
// buffered (Content-Length) or streamed as chunked transfer encoding.
//
// It deliberately does not import package handler or package router: the
// handler ultimately invoked, and the error-route lookup used on failure,
// are supplied by the caller (package connection) as plain function/
// interface values. Handler.Respond's signature already refers to
// *response.Response, so the reverse import would close a cycle; passing
// the resolved handler in instead keeps this package, and package request,
// ignorant of both handler and router.
package response

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github/sabouaram/webd/gate"
	"github/sabouaram/webd/header"
	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/werror"
)

// StreamChunkSize bounds one read/write cycle when copying a stream body,
// whether the transfer is fixed-length or chunked.
const StreamChunkSize = 8192

// Responder is satisfied by any type with a Respond method matching this
// signature - in particular by every handler.Handler, since that
// interface's sole method has the identical signature.
type Responder interface {
	Respond(req *request.Request, resp *Response) error
}

// ErrorLookup resolves the error handler for a failed response's HTTP
// status code. It returns (nil, false) to fall back to the built-in
// default of "(code, statusMessage, \"<code> - <statusMessage>\\n\")".
type ErrorLookup func(code int) (Responder, bool)

// Response is one request/response iteration's write-side state. It is
// owned by the same worker as the Request it answers and is never shared
// across goroutines.
type Response struct {
	conn       net.Conn
	clientAddr string
	serverName string
	log        logger.Logger
	gate       *gate.Gate

	headers   *header.Map
	writeBody bool

	status        int
	statusMessage string
	body          any
}

// New builds a Response bound to conn, logging access lines through log and
// coordinating per-resource concurrency through g.
func New(conn net.Conn, clientAddr, serverName string, log logger.Logger, g *gate.Gate) *Response {
	return &Response{
		conn:       conn,
		clientAddr: clientAddr,
		serverName: serverName,
		log:        log,
		gate:       g,
		headers:    header.New(),
		writeBody:  true,
	}
}

func (r *Response) Headers() *header.Map    { return r.headers }
func (r *Response) SetWriteBody(write bool) { r.writeBody = write }

// SetStatus records the status code and optional reason-phrase override,
// later defaulted from the standard HTTP status text table if empty.
func (r *Response) SetStatus(status int, reason string) {
	r.status = status
	r.statusMessage = reason
}

// SetBody records the handler's return payload: []byte, string, or
// io.Reader.
func (r *Response) SetBody(body any) { r.body = body }

// WriteInterim writes an interim status line (notably 100 Continue) with
// no headers and no body, ahead of the final response.
func (r *Response) WriteInterim(status int, reason string) error {
	_, err := fmt.Fprintf(r.conn, "HTTP/1.1 %d %s\r\n\r\n", status, reason)
	return err
}

// Handle runs the nine-step response pipeline: gate acquisition, handler
// dispatch, error recovery, normalisation, wire emission, and one access-
// log line. atomic is the concurrency mode to acquire the gate under,
// computed by the caller from the matched handler's declared atomicity.
// resolveError, if non-nil, is consulted for the error-route table; absent
// a match (or a nil resolveError) the built-in default error responder is
// used.
func (r *Response) Handle(ctx context.Context, req *request.Request, atomic bool, h Responder, resolveError ErrorLookup) error {
	r.writeBody = true
	r.headers = header.New()

	if err := r.gate.Acquire(ctx, req.Resource(), atomic); err != nil {
		return err
	}

	respondErr := h.Respond(req, r)

	if respondErr != nil {
		r.gate.Release(req.Resource(), atomic)

		werr, ok := werror.Is(respondErr)
		if !ok {
			r.log.Exception("handler failed", respondErr)
			werr = werror.Wrap(500, 0, respondErr)
		}

		r.headers = header.New()
		if werr.Headers != nil {
			r.headers = werr.Headers
		}

		errResponder, found := Responder(nil), false
		if resolveError != nil {
			errResponder, found = resolveError(werr.StatusCode)
		}

		reason := werr.StatusMessage
		if reason == "" {
			reason = http.StatusText(werr.StatusCode)
		}

		if found {
			r.status = 0
			r.body = nil
			if err2 := errResponder.Respond(req, r); err2 != nil {
				r.catastrophic()
			} else if r.status == 0 {
				r.status = werr.StatusCode
				r.statusMessage = reason
			}
		} else {
			r.status = werr.StatusCode
			r.statusMessage = reason
			body := werr.Body
			if body == nil {
				body = fmt.Sprintf("%d - %s\n", werr.StatusCode, reason)
			}
			r.body = body
		}
	} else {
		r.gate.Release(req.Resource(), atomic)
	}

	if err := r.normalize(req); err != nil {
		r.catastrophic()
	}

	n, writeErr := r.emit()
	if writeErr != nil {
		r.log.Exception("writing response failed", writeErr)
	}

	r.log.Request(r.clientAddr, req.RequestLine(), r.status, n, "", "")

	return nil
}

// normalize fills in the reason phrase, Content-Length/Transfer-Encoding,
// Connection, Server and Date headers from the status/body the handler (or
// error recovery) left behind.
func (r *Response) normalize(req *request.Request) error {
	if r.statusMessage == "" {
		r.statusMessage = http.StatusText(r.status)
	}

	switch b := r.body.(type) {
	case nil:
		r.headers.Set("Content-Length", "0")
	case []byte:
		r.headers.Set("Content-Length", strconv.Itoa(len(b)))
	case string:
		encoded := []byte(b)
		r.body = encoded
		r.headers.Set("Content-Length", strconv.Itoa(len(encoded)))
	case io.Reader:
		if _, has := r.headers.Get("Content-Length"); !has {
			r.headers.Set("Transfer-Encoding", "chunked")
		}
	default:
		return fmt.Errorf("response: unsupported body type %T", b)
	}

	if !req.Keepalive() {
		r.headers.Set("Connection", "close")
	}

	r.headers.Set("Server", r.serverName)
	r.headers.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	return nil
}

// catastrophic is the terminal fallback, used when normalize fails or when
// the resolved error handler itself fails: the response is rebuilt from
// scratch as a bare 500.
func (r *Response) catastrophic() {
	r.headers = header.New()
	r.status = 500
	r.statusMessage = "Internal Server Error"
	body := []byte("500 - Internal Server Error\n")
	r.body = body
	r.headers.Set("Content-Length", strconv.Itoa(len(body)))
	r.headers.Set("Server", r.serverName)
	r.headers.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	r.log.Error("response normalization failed, emitting catastrophic 500")
}

// emit writes the status line, headers and body to the connection,
// returning the number of body bytes written for the access log.
func (r *Response) emit() (int64, error) {
	w := bufio.NewWriterSize(r.conn, StreamChunkSize)

	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", r.status, r.statusMessage); err != nil {
		return 0, err
	}
	if _, err := r.headers.WriteTo(w); err != nil {
		return 0, err
	}

	if !r.writeBody {
		return 0, w.Flush()
	}

	var n int64
	var err error

	switch b := r.body.(type) {
	case []byte:
		written, werr := w.Write(b)
		n, err = int64(written), werr
	case io.Reader:
		if _, has := r.headers.Get("Transfer-Encoding"); has {
			n, err = writeChunked(w, b)
		} else {
			length := -1
			if v, ok := r.headers.Get("Content-Length"); ok {
				length, _ = strconv.Atoi(v)
			}
			n, err = writeBounded(w, b, length)
		}
		if closer, ok := b.(io.Closer); ok {
			_ = closer.Close()
		}
	}

	if err != nil {
		return n, err
	}

	return n, w.Flush()
}

func writeBounded(w io.Writer, r io.Reader, length int) (int64, error) {
	if length < 0 {
		return io.Copy(w, r)
	}
	return io.CopyN(w, r, int64(length))
}

func writeChunked(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, StreamChunkSize)
	var total int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := fmt.Fprintf(w, "%x\r\n", n); err != nil {
				return total, err
			}
			written, err := w.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return total, err
			}
		}
		if readErr != nil {
			break
		}
	}

	_, err := io.WriteString(w, "0\r\n\r\n")
	return total, err
}
