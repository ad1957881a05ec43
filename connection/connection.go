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

// Package connection drives one accepted net.Conn through repeated
// request/response iterations until keep-alive ends, gluing together
// package request (parsing), package router (dispatch), package handler
// (the contract concrete handlers implement) and package response
// (serialisation). This is the one package that is allowed to depend on
// all four without creating an import cycle, since none of them depend on
// it.
package connection

import (
	"context"
	"net"
	"time"

	"github/sabouaram/webd/gate"
	"github/sabouaram/webd/handler"
	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
	"github/sabouaram/webd/router"
	"github/sabouaram/webd/werror"
)

// Config bundles the per-connection tunables a Serve call needs, all
// sourced from the server's static configuration.
type Config struct {
	ServerName       string
	RequestTimeout   time.Duration
	KeepaliveTimeout time.Duration // 0 disables keep-alive entirely
	Router           *router.Router
	Gate             *gate.Gate
	Log              logger.Logger

	// MaxLineSize, MaxHeaders and MaxRequestSize override request.Request's
	// parsing bounds. Zero leaves the package default in place.
	MaxLineSize    int
	MaxHeaders     int
	MaxRequestSize int
}

// errHandler re-raises a previously-discovered protocol error instead of
// dispatching to any route; it exists so the response pipeline remains the
// sole writer to the socket even for failures found while parsing. Like
// notFoundHandler, it declares itself nonatomic for every method: a
// protocol failure or a miss in the route table never touches the matched
// handler's own state, so it has no business contending with it for the
// resource gate.
type errHandler struct {
	err *werror.Error
}

func (e errHandler) Respond(_ *request.Request, _ *response.Response) error {
	return e.err
}

func (errHandler) Nonatomic() handler.NonatomicSpec { return handler.AllNonatomic() }

type notFoundHandler struct{}

func (notFoundHandler) Respond(_ *request.Request, _ *response.Response) error {
	return werror.New(404).WithBody("404 - Not Found\n")
}

func (notFoundHandler) Nonatomic() handler.NonatomicSpec { return handler.AllNonatomic() }

// Serve reads and answers requests off conn until keep-alive ends or the
// client disconnects, then closes conn.
func Serve(ctx context.Context, conn net.Conn, clientAddr string, cfg Config) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	keepaliveDefault := cfg.KeepaliveTimeout > 0
	req := request.New(conn, clientAddr, cfg.ServerName, cfg.RequestTimeout, keepaliveDefault,
		request.WithLimits(cfg.MaxLineSize, cfg.MaxHeaders, cfg.MaxRequestSize))

	ok, perr := req.Parse(0)
	for ok {
		serveOne(ctx, req, conn, clientAddr, cfg, perr)

		if !req.Keepalive() {
			break
		}

		ok, perr = req.Parse(cfg.KeepaliveTimeout)
	}

	_ = req.Close()
}

func serveOne(ctx context.Context, req *request.Request, conn net.Conn, clientAddr string, cfg Config, perr *werror.Error) {
	resp := response.New(conn, clientAddr, cfg.ServerName, cfg.Log, cfg.Gate)

	resolveError := func(code int) (response.Responder, bool) {
		build, groups, found := cfg.Router.MatchError(code)
		if !found {
			return nil, false
		}
		return build(req, resp, groups), true
	}

	if perr != nil {
		req.SetKeepalive(false)
		h := errHandler{err: perr}
		atomic := !handler.Nonatomic(h).Contains(req.Method())
		_ = resp.Handle(ctx, req, atomic, h, resolveError)
		return
	}

	build, groups, found := cfg.Router.Match(req.Resource())
	if !found {
		h := notFoundHandler{}
		atomic := !handler.Nonatomic(h).Contains(req.Method())
		_ = resp.Handle(ctx, req, atomic, h, resolveError)
		return
	}

	h := build(req, resp, groups)
	atomic := !handler.Nonatomic(h).Contains(req.Method())

	_ = resp.Handle(ctx, req, atomic, h, resolveError)
}
