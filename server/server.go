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

// Package server binds the listening socket, optionally wraps it in TLS,
// and feeds accepted connections into a pool.Pool. Start, Stop, IsRunning
// and Close are all idempotent: calling Start twice or Stop on a server
// that was never started is harmless.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/pool"
)

// Config bundles the tunables Start needs: where to listen, the optional
// TLS material, and the pool it hands accepted connections to.
type Config struct {
	Address  string
	KeyFile  string // TLS private key; empty means plain TCP
	CertFile string // TLS certificate; empty means plain TCP
	Pool     pool.Config
	Log      logger.Logger
}

// Server owns a listener and the worker pool it feeds.
type Server struct {
	cfg Config

	mu       sync.Mutex
	listener net.Listener
	p        *pool.Pool
	running  bool
	wg       sync.WaitGroup
}

// New returns a Server that has not yet bound its listener.
func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// IsRunning reports whether the server currently owns an open listener.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start binds the listening socket (TLS-wrapped when KeyFile/CertFile are
// set), starts the worker pool, and begins accepting connections in the
// background. Calling Start on an already-running Server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	ln, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.listener = ln
	s.p = pool.New(s.cfg.Pool)
	s.running = true
	s.mu.Unlock()

	s.p.Start(ctx)

	if s.cfg.Log != nil {
		s.cfg.Log.Info("Serving HTTP on %s", ln.Addr().String())
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) listen() (net.Listener, error) {
	ln, err := reuseAddrListen("tcp", s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", s.cfg.Address, err)
	}

	if s.cfg.KeyFile == "" && s.cfg.CertFile == "" {
		return ln, nil
	}

	cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("server: loading TLS key pair: %w", err)
	}

	return tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}}), nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				return
			}
			if s.cfg.Log != nil {
				s.cfg.Log.Error("accept failed: %v", err)
			}
			continue
		}

		clientAddr := conn.RemoteAddr().String()
		if werr := s.p.Enqueue(conn, clientAddr); werr != nil {
			if s.cfg.Log != nil {
				s.cfg.Log.Exception("dropping connection, pool rejected it", werr)
			}
			_ = conn.Close()
		}
	}
}

// Stop closes the listener, waits for the accept loop to exit, drains and
// joins the worker pool. Calling Stop on a Server that isn't running is a
// no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ln := s.listener
	p := s.p
	s.mu.Unlock()

	_ = ln.Close()
	s.wg.Wait()
	p.Stop()
}

// Close is Stop expressed as an io.Closer, for callers that want to defer
// a single method across Start.
func (s *Server) Close() error {
	s.Stop()
	return nil
}
