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

// Package handler defines the dispatch contract every route target
// implements, and Base, an embeddable default that synthesizes OPTIONS and
// HEAD and performs the standard method lookup / 100-continue / body-read
// orchestration around a concrete Do<Method> set discovered by type
// assertion.
package handler

import (
	"sort"
	"strings"

	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
	"github/sabouaram/webd/werror"
)

// Body is the return payload of a Do<Method> call: a []byte, a string
// (encoded UTF-8 by the response writer), or an io.Reader streamed to the
// client.
type Body any

// Handler is implemented by every route target. Respond is invoked by the
// response writer with the resource gate already held at the computed
// atomicity.
type Handler interface {
	Respond(req *request.Request, resp *response.Response) error
}

// ContinueChecker is implemented by handlers that want to inspect or reject
// an Expect: 100-continue request before the interim response is sent.
type ContinueChecker interface {
	CheckContinue(req *request.Request, resp *response.Response) error
}

// BodyGetter overrides whether Base reads a request body before dispatch.
// Base's default is false except for POST, PUT and PATCH.
type BodyGetter interface {
	GetBody(method string) bool
}

// NonatomicSpec is a tagged variant standing in for the distilled design's
// boolean-or-collection duck typing: a handler is either entirely
// nonatomic, entirely atomic, or nonatomic for a specific set of methods.
type NonatomicSpec struct {
	kind    nonatomicKind
	methods map[string]struct{}
}

type nonatomicKind int

const (
	kindNone nonatomicKind = iota
	kindAll
	kindPerMethod
)

// AllNonatomic returns a spec under which every method is nonatomic.
func AllNonatomic() NonatomicSpec { return NonatomicSpec{kind: kindAll} }

// NoneNonatomic returns a spec under which every method is atomic.
func NoneNonatomic() NonatomicSpec { return NonatomicSpec{kind: kindNone} }

// PerMethod returns a spec under which only the named (case-insensitive)
// methods are nonatomic.
func PerMethod(methods ...string) NonatomicSpec {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToLower(m)] = struct{}{}
	}
	return NonatomicSpec{kind: kindPerMethod, methods: set}
}

// Contains reports whether method is declared nonatomic under spec.
func (s NonatomicSpec) Contains(method string) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindPerMethod:
		_, ok := s.methods[strings.ToLower(method)]
		return ok
	default:
		return false
	}
}

// NonatomicDeclarer is implemented by handlers that depart from Base's
// default of NoneNonatomic (every method runs atomically).
type NonatomicDeclarer interface {
	Nonatomic() NonatomicSpec
}

// Getter, Poster, Putter, Deleter and Patcher are discovered on a concrete
// handler via type assertion; Base dispatches to whichever of these the
// embedding type implements for the requested method.
type (
	Getter  interface{ DoGet(req *request.Request, resp *response.Response) (int, Body) }
	Poster  interface{ DoPost(req *request.Request, resp *response.Response) (int, Body) }
	Putter  interface{ DoPut(req *request.Request, resp *response.Response) (int, Body) }
	Deleter interface{ DoDelete(req *request.Request, resp *response.Response) (int, Body) }
	Patcher interface{ DoPatch(req *request.Request, resp *response.Response) (int, Body) }
)

// Base is embedded by concrete handlers to get the standard respond
// orchestration: method lookup, 100-continue, bounded body read, OPTIONS
// and HEAD synthesis. Concrete handlers implement one or more of Getter,
// Poster, Putter, Deleter, Patcher (discovered via type assertion against
// the embedding value stored in Self).
type Base struct {
	// Self must be set by the embedding handler to itself, so Base can type-
	// assert the concrete method set. Left nil, Base type-asserts against
	// itself and finds nothing, which is only correct for a Base used
	// standalone (e.g. a synthetic error handler).
	Self interface{}
}

// Respond implements the default dispatch described in the handler
// contract: 405 if no Do<Method> exists, 100-continue handling, bounded
// body read for methods whose GetBody is true, then the method call
// itself.
func (b *Base) Respond(req *request.Request, resp *response.Response) error {
	self := b.Self
	if self == nil {
		self = b
	}

	method := strings.ToUpper(req.Method())

	if method == "OPTIONS" {
		allow := allowedMethods(self)
		resp.Headers().Set("Allow", strings.Join(allow, ", "))
		resp.SetStatus(204, "No Content")
		resp.SetBody(nil)
		return nil
	}

	if method == "HEAD" {
		resp.SetWriteBody(false)
		req.SetMethod("GET")
		return b.Respond(req, resp)
	}

	fn, ok := lookupDo(self, method)
	if !ok {
		return werror.New(405).
			WithStatusMessage("Method Not Allowed").
			WithBody("405 - Method Not Allowed\n")
	}

	if expect, _ := req.Headers().Get("Expect"); strings.EqualFold(strings.TrimSpace(expect), "100-continue") {
		if cc, ok := self.(ContinueChecker); ok {
			if err := cc.CheckContinue(req, resp); err != nil {
				return err
			}
		}
		if err := resp.WriteInterim(100, "Continue"); err != nil {
			return err
		}
	}

	if getsBody(self, method) {
		if err := req.ReadBody(); err != nil {
			req.SetKeepalive(false)
			return err
		}
	}

	status, body := fn(req, resp)
	resp.SetStatus(status, "")
	resp.SetBody(body)
	return nil
}

func lookupDo(self interface{}, method string) (func(*request.Request, *response.Response) (int, Body), bool) {
	switch method {
	case "GET":
		if h, ok := self.(Getter); ok {
			return h.DoGet, true
		}
	case "POST":
		if h, ok := self.(Poster); ok {
			return h.DoPost, true
		}
	case "PUT":
		if h, ok := self.(Putter); ok {
			return h.DoPut, true
		}
	case "DELETE":
		if h, ok := self.(Deleter); ok {
			return h.DoDelete, true
		}
	case "PATCH":
		if h, ok := self.(Patcher); ok {
			return h.DoPatch, true
		}
	}
	return nil, false
}

func allowedMethods(self interface{}) []string {
	var allow []string
	if _, ok := self.(Getter); ok {
		allow = append(allow, "GET", "HEAD")
	}
	if _, ok := self.(Poster); ok {
		allow = append(allow, "POST")
	}
	if _, ok := self.(Putter); ok {
		allow = append(allow, "PUT")
	}
	if _, ok := self.(Deleter); ok {
		allow = append(allow, "DELETE")
	}
	if _, ok := self.(Patcher); ok {
		allow = append(allow, "PATCH")
	}
	allow = append(allow, "OPTIONS")
	sort.Strings(allow)
	return allow
}

func getsBody(self interface{}, method string) bool {
	if bg, ok := self.(BodyGetter); ok {
		return bg.GetBody(method)
	}
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// Nonatomic returns the handler's NonatomicSpec: NoneNonatomic unless self
// implements NonatomicDeclarer.
func Nonatomic(self interface{}) NonatomicSpec {
	if nd, ok := self.(NonatomicDeclarer); ok {
		return nd.Nonatomic()
	}
	return NoneNonatomic()
}
