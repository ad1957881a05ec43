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

// Package pool runs a bounded queue of accepted connections through a
// resizable set of worker goroutines. Each worker owns its own shutdown
// channel rather than all workers sharing one sentinel value, so the
// manager can retire a single worker without disturbing the rest. A
// manager goroutine grows the worker count toward MaxThreads under queue
// pressure and shrinks it back toward NumThreads once the queue drains.
package pool

import (
	"context"
	"net"
	"runtime"
	"sync"
	"time"

	"github/sabouaram/webd/connection"
	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/werror"
)

// task is one accepted connection waiting to be served.
type task struct {
	conn       net.Conn
	clientAddr string
}

// worker is one slot in the pool's dense slice. A slot is reused once its
// prior occupant has exited: generation is bumped so log lines can tell
// retired goroutines apart from their replacement.
type worker struct {
	id         int
	generation uint64
	shutdown   chan struct{}
	active     bool
}

// Config bundles the tunables a Pool needs at construction.
type Config struct {
	NumThreads   int           // steady-state worker count
	MaxThreads   int           // ceiling a burst may grow to
	MaxQueue     int           // bounded queue capacity
	PollInterval time.Duration // manager tick
	Conn         connection.Config
	Log          logger.Logger
}

// Pool is a running (or stopped) worker pool. Use New then Start; Stop
// drains and joins every worker.
type Pool struct {
	cfg   Config
	queue chan task

	mu      sync.Mutex
	workers []*worker
	active  int

	wg          sync.WaitGroup
	tasks       sync.WaitGroup // in-flight + queued tasks, for drain-on-Stop
	managerDone chan struct{}
	running     bool
}

// New returns a Pool that has not yet been started.
func New(cfg Config) *Pool {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}
	if cfg.MaxThreads < cfg.NumThreads {
		cfg.MaxThreads = cfg.NumThreads
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &Pool{
		cfg:   cfg,
		queue: make(chan task, cfg.MaxQueue),
	}
}

// Start spawns NumThreads workers and the manager goroutine. Calling Start
// on an already-running Pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.managerDone = make(chan struct{})

	for i := 0; i < p.cfg.NumThreads; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	go p.manage(ctx)
}

// IsRunning reports whether the pool is currently accepting work.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Enqueue hands conn to the pool for service by some worker. It returns
// ErrPoolStopped if the pool is not running and ErrPoolFull if the queue
// is at capacity. A successful Enqueue registers the task with p.tasks, so
// Stop can wait for it to be fully served before joining workers.
func (p *Pool) Enqueue(conn net.Conn, clientAddr string) *werror.Error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return werror.Wrap(503, werror.ErrPoolStopped, nil).WithBody("503 - Service Unavailable\n").
			WithStatusMessage("Service Unavailable")
	}
	p.tasks.Add(1)
	p.mu.Unlock()

	select {
	case p.queue <- task{conn: conn, clientAddr: clientAddr}:
		return nil
	default:
		p.tasks.Done()
		return werror.Newf(werror.ErrPoolFull, "queue at capacity (%d)", p.cfg.MaxQueue)
	}
}

// Stop stops the manager, waits for every already-enqueued task to finish
// being served, then shrinks every worker to zero and joins them. Calling
// Stop on a Pool that isn't running is a no-op. Registering the running flip and the task count under the same lock as Enqueue keeps a
// racing Enqueue from being counted after Stop has started draining.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	done := p.managerDone
	p.mu.Unlock()

	close(done)

	p.tasks.Wait()

	p.mu.Lock()
	for _, w := range p.workers {
		if w.active {
			w.active = false
			close(w.shutdown)
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// activateLocked marks w active, gives it a fresh shutdown channel and
// generation, and starts its worker goroutine. Callers must hold p.mu.
func (p *Pool) activateLocked(w *worker) {
	w.active = true
	w.generation++
	w.shutdown = make(chan struct{})
	p.active++
	p.wg.Add(1)
	go p.runWorker(w)
}

// spawnLocked starts one worker, reusing a retired slot if one exists.
// Callers must hold p.mu.
func (p *Pool) spawnLocked() {
	for _, w := range p.workers {
		if !w.active {
			p.activateLocked(w)
			return
		}
	}

	w := &worker{id: len(p.workers), active: true, shutdown: make(chan struct{})}
	p.workers = append(p.workers, w)
	p.active++
	p.wg.Add(1)
	go p.runWorker(w)
}

// retireOneLocked marks the highest-index active worker inactive and
// signals its shutdown channel. Callers must hold p.mu.
func (p *Pool) retireOneLocked() {
	for i := len(p.workers) - 1; i >= 0; i-- {
		w := p.workers[i]
		if w.active {
			w.active = false
			p.active--
			close(w.shutdown)
			return
		}
	}
}

func (p *Pool) runWorker(w *worker) {
	defer p.wg.Done()
	defer p.recoverDeath(w)

	for {
		select {
		case <-w.shutdown:
			return
		case t := <-p.queue:
			p.serveTracked(t)
		}
	}
}

// recoverDeath runs as runWorker's outermost defer. It only has work to do
// when serve let a runtime.Error through instead of swallowing it: the
// worker's goroutine is about to exit for good, so its slot is respawned in
// place (preserving w's id for log continuity) unless the pool has since
// stopped. Ordering against the sibling p.wg.Done() defer matters: this
// runs first, so the replacement's p.wg.Add(1) lands before the dying
// goroutine's Done(), and Stop's p.wg.Wait() never observes a false zero.
func (p *Pool) recoverDeath(w *worker) {
	r := recover()
	if r == nil {
		return
	}

	if p.cfg.Log != nil {
		p.cfg.Log.Error("worker %d died from a fatal panic, replacing it: %v", w.id, r)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if w.active {
		w.active = false
		p.active--
	}

	if p.running {
		p.activateLocked(w)
	}
}

// serveTracked runs one task and always marks it done in p.tasks, even if
// serve lets a fatal panic propagate, so Stop's drain wait never hangs on a
// task whose worker died mid-service.
func (p *Pool) serveTracked(t task) {
	defer p.tasks.Done()
	p.serve(t)
}

// serve recovers an ordinary handler panic and closes the connection. A
// panic of type runtime.Error is let through instead: it signals state a
// caller's recover could have silently papered over (corrupted slices,
// nil-map writes reached in an unexpected way), so the worker goroutine is
// allowed to die and recoverDeath replaces it rather than letting it loop
// on possibly-bad state.
func (p *Pool) serve(t task) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		if _, fatal := r.(runtime.Error); fatal {
			_ = t.conn.Close()
			panic(r)
		}

		if p.cfg.Log != nil {
			p.cfg.Log.Error("worker recovered from panic serving %s: %v", t.clientAddr, r)
		}
		_ = t.conn.Close()
	}()

	connection.Serve(context.Background(), t.conn, t.clientAddr, p.cfg.Conn)
}

// manage grows the pool toward MaxThreads while the queue is under
// pressure and shrinks it back toward NumThreads once it drains, checking
// once per PollInterval.
func (p *Pool) manage(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.mu.Lock()
	done := p.managerDone
	p.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.rebalance()
		}
	}
}

func (p *Pool) rebalance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	depth := len(p.queue)

	switch {
	case depth > p.cfg.MaxQueue/2 && p.active < p.cfg.MaxThreads:
		p.spawnLocked()
	case depth == 0 && p.active > p.cfg.NumThreads:
		p.retireOneLocked()
	}
}
