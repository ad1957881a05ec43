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

// Package router holds two ordered, anchored-regex route tables compiled
// once at construction: one matched against a request's resource string,
// one matched against an error's decimal status code rendered as text. The
// first match wins, in registration order.
package router

import (
	"regexp"
	"strconv"

	"github/sabouaram/webd/handler"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
)

// Constructor builds a handler.Handler for a matched route, given the
// request/response pair and the regex's captured groups (index 0 is the
// whole match, matching regexp.FindStringSubmatch's convention).
type Constructor func(req *request.Request, resp *response.Response, groups []string) handler.Handler

type route struct {
	pattern *regexp.Regexp
	build   Constructor
}

// Router holds the compiled request and error route tables.
type Router struct {
	routes      []route
	errorRoutes []route
}

// New returns an empty Router; routes are added with Handle and
// HandleError.
func New() *Router {
	return &Router{}
}

// Handle registers a constructor for resource strings matching pattern.
// pattern is anchored with ^...$ if not already. Panics on an invalid
// regex: route tables are built once at startup from static configuration,
// so a malformed pattern is a configuration error caught at construction,
// not a runtime condition to recover from.
func (rt *Router) Handle(pattern string, build Constructor) {
	rt.routes = append(rt.routes, route{pattern: anchor(pattern), build: build})
}

// HandleError registers a constructor for status codes whose decimal text
// matches pattern (e.g. "404", "5.."  for Go regexp-dot-any-digit style
// wildcards over the code family).
func (rt *Router) HandleError(pattern string, build Constructor) {
	rt.errorRoutes = append(rt.errorRoutes, route{pattern: anchor(pattern), build: build})
}

func anchor(pattern string) *regexp.Regexp {
	if len(pattern) == 0 || pattern[0] != '^' {
		pattern = "^" + pattern
	}
	if pattern[len(pattern)-1] != '$' {
		pattern += "$"
	}
	return regexp.MustCompile(pattern)
}

// Match returns the first request route whose pattern matches resource,
// along with its Constructor and captured groups.
func (rt *Router) Match(resource string) (Constructor, []string, bool) {
	return match(rt.routes, resource)
}

// MatchError returns the first error route whose pattern matches the
// decimal text of code.
func (rt *Router) MatchError(code int) (Constructor, []string, bool) {
	return match(rt.errorRoutes, strconv.Itoa(code))
}

func match(routes []route, subject string) (Constructor, []string, bool) {
	for _, r := range routes {
		if groups := r.pattern.FindStringSubmatch(subject); groups != nil {
			return r.build, groups, true
		}
	}
	return nil, nil, false
}
