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

package router_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github/sabouaram/webd/handler"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
	"github/sabouaram/webd/router"
)

type namedHandler struct {
	handler.Base
	name string
}

func TestRouter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Router Suite")
}

var _ = Describe("Router", func() {
	var rt *router.Router

	BeforeEach(func() {
		rt = router.New()
	})

	It("matches a literal route anchored at both ends", func() {
		rt.Handle("/widgets", func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
			return &namedHandler{name: "widgets"}
		})

		build, groups, ok := rt.Match("/widgets")
		Expect(ok).To(BeTrue())
		Expect(groups).To(Equal([]string{"/widgets"}))

		h := build(nil, nil, groups).(*namedHandler)
		Expect(h.name).To(Equal("widgets"))

		_, _, ok = rt.Match("/widgets/extra")
		Expect(ok).To(BeFalse())
	})

	It("captures groups from a parameterised pattern", func() {
		rt.Handle(`/widgets/([0-9]+)`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
			return &namedHandler{name: groups[1]}
		})

		build, groups, ok := rt.Match("/widgets/42")
		Expect(ok).To(BeTrue())
		h := build(nil, nil, groups).(*namedHandler)
		Expect(h.name).To(Equal("42"))
	})

	It("resolves the first matching route in registration order", func() {
		rt.Handle(`/.*`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
			return &namedHandler{name: "catch-all"}
		})
		rt.Handle(`/widgets`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
			return &namedHandler{name: "widgets"}
		})

		build, groups, ok := rt.Match("/widgets")
		Expect(ok).To(BeTrue())
		h := build(nil, nil, groups).(*namedHandler)
		Expect(h.name).To(Equal("catch-all"))
	})

	It("matches error routes against the decimal status code", func() {
		rt.HandleError(`40[0-9]`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
			return &namedHandler{name: "client-error"}
		})

		build, groups, ok := rt.MatchError(404)
		Expect(ok).To(BeTrue())
		h := build(nil, nil, groups).(*namedHandler)
		Expect(h.name).To(Equal("client-error"))

		_, _, ok = rt.MatchError(500)
		Expect(ok).To(BeFalse())
	})
})
