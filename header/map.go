/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package header implements a case-insensitive, order-preserving HTTP header
// container. Lookup is keyed on the lower-cased field name; emission uses
// the case the field was most recently set or added with.
package header

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

type entry struct {
	name  string // canonical (original) case
	value string
}

// Map is a case-insensitive ordered header container. The zero value is not
// usable; construct one with New.
type Map struct {
	mu    sync.RWMutex
	order []string // lower-cased keys, insertion order
	data  map[string]entry
}

// New returns an empty, ready to use header Map.
func New() *Map {
	return &Map{
		data: make(map[string]entry),
	}
}

// Clear removes every stored header.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = m.order[:0]
	m.data = make(map[string]entry)
}

// Set stores name/value, preserving name's case for emission. Lookup remains
// case-insensitive. Re-setting an existing name updates its value in place
// without disturbing iteration order.
func (m *Map) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(name, value)
}

func (m *Map) set(name, value string) {
	key := strings.ToLower(name)

	if _, ok := m.data[key]; !ok {
		m.order = append(m.order, key)
	}

	m.data[key] = entry{name: name, value: value}
}

// SetAny is the untyped entry point used where header values arrive as
// interface{} (config binding, template data, ...). It fails if either
// argument is not a string.
func (m *Map) SetAny(name, value any) error {
	n, ok := name.(string)
	if !ok {
		return fmt.Errorf("header: name must be a string, got %T", name)
	}

	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("header: value must be a string, got %T", value)
	}

	m.Set(n, v)
	return nil
}

// Add parses one raw header line, including its trailing CRLF (or bare LF).
// The field name is the substring before the first colon; the value is the
// remainder with surrounding whitespace trimmed. Returns an error if the
// line carries no colon.
func (m *Map) Add(line string) error {
	line = strings.TrimRight(line, "\r\n")

	i := strings.IndexByte(line, ':')
	if i < 0 {
		return fmt.Errorf("header: malformed line, no colon: %q", line)
	}

	name := line[:i]
	value := strings.TrimSpace(line[i+1:])

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(name, value)
	return nil
}

// Get returns the value stored for name and whether it was present.
func (m *Map) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[strings.ToLower(name)]
	return e.value, ok
}

// GetDefault returns the stored value for name, or def if absent.
func (m *Map) GetDefault(name, def string) string {
	if v, ok := m.Get(name); ok {
		return v
	}
	return def
}

// Has reports whether name is present, case-insensitively.
func (m *Map) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Remove deletes name if present.
func (m *Map) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := m.data[key]; !ok {
		return
	}

	delete(m.data, key)

	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of stored headers. The end-of-headers sentinel is
// not counted.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.order)
}

// Lines returns every stored header formatted as "<Canonical>: <value>\r\n",
// in insertion order, followed by the terminating "\r\n" sentinel. Callers
// that only need to iterate should prefer WriteTo to avoid the allocation.
func (m *Map) Lines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.order)+1)
	for _, key := range m.order {
		e := m.data[key]
		out = append(out, fmt.Sprintf("%s: %s\r\n", e.name, e.value))
	}
	out = append(out, "\r\n")

	return out
}

// WriteTo writes every stored header as "<Canonical>: <value>\r\n" in
// insertion order, then the "\r\n" end-of-headers sentinel, to w. It
// implements io.WriterTo.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	m.mu.RLock()
	keys := append([]string(nil), m.order...)
	entries := make([]entry, len(keys))
	for i, k := range keys {
		entries[i] = m.data[k]
	}
	m.mu.RUnlock()

	var total int64

	for _, e := range entries {
		n, err := fmt.Fprintf(w, "%s: %s\r\n", e.name, e.value)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	n, err := io.WriteString(w, "\r\n")
	total += int64(n)

	return total, err
}

// Clone returns an independent copy of m.
func (m *Map) Clone() *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := New()
	c.order = append(c.order, m.order...)
	for k, v := range m.data {
		c.data[k] = v
	}

	return c
}
