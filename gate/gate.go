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

// Package gate coordinates per-resource concurrency: any number of
// "nonatomic" holders may run against the same resource concurrently, but
// an "atomic" holder requires exclusive access. Entries are condition-
// variable based rather than busy-waiting, and are keyed by the raw
// request resource string (path plus query), never a normalized path.
package gate

import (
	"context"
	"sync"

	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/werror"
)

type entry struct {
	mu            sync.Mutex
	cond          *sync.Cond
	writerPresent bool
	count         int
}

func newEntry() *entry {
	e := &entry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *entry) blocked(atomic bool) bool {
	if atomic {
		return e.count > 0
	}
	return e.writerPresent
}

func (e *entry) idle() bool {
	return e.count == 0 && !e.writerPresent
}

// Gate is a registry of per-resource entries, created empty and populated
// lazily as resources are first acquired.
type Gate struct {
	log     logger.Logger
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Gate. log receives a record of any Release call that
// has no matching prior Acquire; such a call can only originate from an
// internal bug, never from request input, so it is logged rather than
// returned to the caller.
func New(log logger.Logger) *Gate {
	return &Gate{log: log, entries: make(map[string]*entry)}
}

func (g *Gate) lookup(resource string, create bool) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[resource]
	if !ok && create {
		e = newEntry()
		g.entries[resource] = e
	}
	return e
}

// Acquire blocks until resource can be held under the requested atomicity:
// an atomic acquire waits for zero current holders, a nonatomic acquire
// waits for no current atomic holder. It returns early with ctx.Err() if
// ctx is canceled while waiting.
func (g *Gate) Acquire(ctx context.Context, resource string, atomic bool) error {
	e := g.lookup(resource, true)

	e.mu.Lock()
	defer e.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	for e.blocked(atomic) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if atomic {
		e.writerPresent = true
		e.count = 1
	} else {
		e.count++
	}

	return nil
}

// Release decrements resource's holder count and wakes any waiters. A
// Release with no matching prior Acquire is logged as an internal error and
// otherwise ignored.
func (g *Gate) Release(resource string, atomic bool) {
	e := g.lookup(resource, false)
	if e == nil {
		g.logMismatch(resource, atomic)
		return
	}

	e.mu.Lock()

	switch {
	case atomic && !e.writerPresent:
		e.mu.Unlock()
		g.logMismatch(resource, atomic)
		return
	case !atomic && e.count <= 0:
		e.mu.Unlock()
		g.logMismatch(resource, atomic)
		return
	}

	if atomic {
		e.writerPresent = false
		e.count = 0
	} else {
		e.count--
	}

	empty := e.idle()
	e.cond.Broadcast()
	e.mu.Unlock()

	if empty {
		g.evictIfIdle(resource, e)
	}
}

func (g *Gate) evictIfIdle(resource string, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idle() && g.entries[resource] == e {
		delete(g.entries, resource)
	}
}

func (g *Gate) logMismatch(resource string, atomic bool) {
	if g.log == nil {
		return
	}
	g.log.Exception("resource gate release without matching acquire",
		werror.Newf(werror.ErrGateReleaseWithoutAcquire, "resource=%q atomic=%t", resource, atomic))
}
