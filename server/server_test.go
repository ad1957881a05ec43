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

package server_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github/sabouaram/webd/connection"
	"github/sabouaram/webd/gate"
	"github/sabouaram/webd/handler"
	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/pool"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
	"github/sabouaram/webd/router"
	"github/sabouaram/webd/server"
)

type helloHandler struct {
	handler.Base
}

func (h *helloHandler) DoGet(req *request.Request, resp *response.Response) (int, handler.Body) {
	return 200, []byte("hello")
}

type blockingHandler struct {
	handler.Base
	release <-chan struct{}
}

func (h *blockingHandler) DoGet(req *request.Request, resp *response.Response) (int, handler.Body) {
	<-h.release
	return 200, []byte("done")
}

func newBlockingTestServer(addr string, release <-chan struct{}) *server.Server {
	log, err := logger.New(logger.Config{DisableAccessLog: true})
	Expect(err).NotTo(HaveOccurred())

	rt := router.New()
	rt.Handle(`/block`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
		h := &blockingHandler{release: release}
		h.Self = h
		return h
	})

	return server.New(server.Config{
		Address: addr,
		Log:     log,
		Pool: pool.Config{
			NumThreads:   1,
			MaxThreads:   1,
			MaxQueue:     4,
			PollInterval: 10 * time.Millisecond,
			Conn: connection.Config{
				ServerName:       "webd/0.1",
				RequestTimeout:   time.Second,
				KeepaliveTimeout: 0,
				Router:           rt,
				Gate:             gate.New(log),
				Log:              log,
			},
			Log: log,
		},
	})
}

func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestServer(addr string) *server.Server {
	log, err := logger.New(logger.Config{DisableAccessLog: true})
	Expect(err).NotTo(HaveOccurred())

	rt := router.New()
	rt.Handle(`/hello`, func(req *request.Request, resp *response.Response, groups []string) handler.Handler {
		h := &helloHandler{}
		h.Self = h
		return h
	})

	return server.New(server.Config{
		Address: addr,
		Log:     log,
		Pool: pool.Config{
			NumThreads:   2,
			MaxThreads:   2,
			MaxQueue:     8,
			PollInterval: 10 * time.Millisecond,
			Conn: connection.Config{
				ServerName:       "webd/0.1",
				RequestTimeout:   time.Second,
				KeepaliveTimeout: 0,
				Router:           rt,
				Gate:             gate.New(log),
				Log:              log,
			},
			Log: log,
		},
	})
}

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

var _ = Describe("Server", func() {
	It("answers HTTP requests once started, and rejects new ones once stopped", func() {
		addr := fmt.Sprintf("127.0.0.1:%d", freePort())
		s := newTestServer(addr)

		Expect(s.Start(context.Background())).To(Succeed())
		Expect(s.IsRunning()).To(BeTrue())

		Eventually(func() error {
			resp, err := http.Get("http://" + addr + "/hello")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "hello" {
				return fmt.Errorf("unexpected body %q", body)
			}
			return nil
		}, 2*time.Second, 20*time.Millisecond).Should(Succeed())

		s.Stop()
		Expect(s.IsRunning()).To(BeFalse())

		_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		Expect(err).To(HaveOccurred())
	})

	It("tolerates Start/Stop called twice", func() {
		addr := fmt.Sprintf("127.0.0.1:%d", freePort())
		s := newTestServer(addr)

		Expect(s.Start(context.Background())).To(Succeed())
		Expect(s.Start(context.Background())).To(Succeed())

		s.Stop()
		s.Stop()
		Expect(s.IsRunning()).To(BeFalse())
	})

	It("drains a still-queued request before Stop joins its workers", func() {
		addr := fmt.Sprintf("127.0.0.1:%d", freePort())
		release := make(chan struct{})
		s := newBlockingTestServer(addr, release)
		Expect(s.Start(context.Background())).To(Succeed())

		Eventually(func() error {
			conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
			if err != nil {
				return err
			}
			return conn.Close()
		}, 2*time.Second, 20*time.Millisecond).Should(Succeed())

		result1 := make(chan string, 1)
		go func() {
			resp, err := http.Get("http://" + addr + "/block")
			if err != nil {
				result1 <- ""
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			result1 <- string(body)
		}()

		// Let the first request occupy the sole worker before sending the
		// second, so it lands in the queue instead of racing for the worker.
		time.Sleep(50 * time.Millisecond)

		result2 := make(chan string, 1)
		go func() {
			resp, err := http.Get("http://" + addr + "/block")
			if err != nil {
				result2 <- ""
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			result2 <- string(body)
		}()

		time.Sleep(50 * time.Millisecond)

		stopped := make(chan struct{})
		go func() {
			s.Stop()
			close(stopped)
		}()

		// Stop must not return while the queued request is still unserved.
		Consistently(stopped, 150*time.Millisecond).ShouldNot(BeClosed())

		close(release)

		Eventually(stopped, time.Second).Should(BeClosed())
		Expect(<-result1).To(Equal("done"))
		Expect(<-result2).To(Equal("done"))
	})
})
