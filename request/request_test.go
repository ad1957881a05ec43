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

package request_test

import (
	"net"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github/sabouaram/webd/request"
)

func TestRequest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Request Suite")
}

func pipePair() (client, server net.Conn) {
	return net.Pipe()
}

var _ = Describe("Request.Parse", func() {
	var client, server net.Conn

	BeforeEach(func() {
		client, server = pipePair()
	})

	AfterEach(func() {
		_ = client.Close()
		_ = server.Close()
	})

	It("parses a well-formed request line and headers", func() {
		go func() {
			_, _ = client.Write([]byte("GET /foo?bar=1 HTTP/1.1\r\nHost: example.com\r\nX-Test: one\r\n\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).To(BeNil())
		Expect(r.Method()).To(Equal("GET"))
		Expect(r.Resource()).To(Equal("/foo?bar=1"))
		Expect(r.RequestLine()).To(Equal("GET /foo?bar=1 HTTP/1.1"))

		v, found := r.Headers().Get("Host")
		Expect(found).To(BeTrue())
		Expect(v).To(Equal("example.com"))
		Expect(r.Keepalive()).To(BeTrue())
	})

	It("disables keepalive when Connection: close is present", func() {
		go func() {
			_, _ = client.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).To(BeNil())
		Expect(r.Keepalive()).To(BeFalse())
	})

	It("fails with 414 when the request line exceeds the maximum line size", func() {
		go func() {
			oversized := strings.Repeat("a", request.MaxLineSize+50)
			_, _ = client.Write([]byte("GET /" + oversized + " HTTP/1.1\r\n\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(414))
	})

	It("fails with 400 on the wrong token arity", func() {
		go func() {
			_, _ = client.Write([]byte("GET HTTP/1.1\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(400))
	})

	It("fails with 505 on a non-HTTP/1.1 version token", func() {
		go func() {
			_, _ = client.Write([]byte("GET / HTTP/1.0\r\n\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(505))
	})

	It("fails with 431 and a field-name reason when a header line is too long", func() {
		go func() {
			client.Write([]byte("GET / HTTP/1.1\r\n"))
			client.Write([]byte("X-Long: " + strings.Repeat("a", request.MaxLineSize+10) + "\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(431))
		Expect(err.StatusMessage).To(Equal("X-Long Header Too Large"))
	})

	It("fails with 431 once the header count exceeds the maximum", func() {
		go func() {
			client.Write([]byte("GET / HTTP/1.1\r\n"))
			for i := 0; i < request.MaxHeaders+1; i++ {
				client.Write([]byte("X-Num: 1\r\n"))
			}
			client.Write([]byte("\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(431))
	})

	It("fails with 400 on a header line with no colon", func() {
		go func() {
			client.Write([]byte("GET / HTTP/1.1\r\n"))
			client.Write([]byte("not-a-header-line\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeTrue())
		Expect(err).NotTo(BeNil())
		Expect(err.StatusCode).To(Equal(400))
	})

	It("silently aborts when the client closes before sending anything", func() {
		_ = client.Close()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)

		Expect(ok).To(BeFalse())
		Expect(err).To(BeNil())
	})
})

var _ = Describe("Request.ReadBody", func() {
	var client, server net.Conn

	BeforeEach(func() {
		client, server = pipePair()
	})

	AfterEach(func() {
		_ = client.Close()
		_ = server.Close()
	})

	It("reads exactly Content-Length bytes", func() {
		go func() {
			client.Write([]byte("POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)
		Expect(ok).To(BeTrue())
		Expect(err).To(BeNil())

		berr := r.ReadBody()
		Expect(berr).To(BeNil())
		Expect(r.Body()).To(Equal([]byte("hello")))
	})

	It("fails with 413 when Content-Length exceeds the maximum", func() {
		go func() {
			client.Write([]byte("POST /x HTTP/1.1\r\nContent-Length: 999999999\r\n\r\n"))
		}()

		r := request.New(server, "127.0.0.1:1234", "webd/0.1", time.Second, true)
		ok, err := r.Parse(0)
		Expect(ok).To(BeTrue())
		Expect(err).To(BeNil())

		berr := r.ReadBody()
		Expect(berr).NotTo(BeNil())
		Expect(berr.StatusCode).To(Equal(413))
	})
})
