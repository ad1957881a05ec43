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

package header_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github/sabouaram/webd/header"
)

func TestHeader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Header Map Suite")
}

var _ = Describe("Map", func() {
	It("preserves canonical case while matching case-insensitively", func() {
		m := header.New()
		m.Set("Content-Type", "text/plain")

		v, ok := m.Get("content-type")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("text/plain"))

		Expect(m.Len()).To(Equal(1))
	})

	It("updates in place on re-Set without changing order", func() {
		m := header.New()
		m.Set("A", "1")
		m.Set("B", "2")
		m.Set("a", "3")

		Expect(m.Len()).To(Equal(2))
		v, _ := m.Get("A")
		Expect(v).To(Equal("3"))
	})

	It("parses a raw header line via Add, trimming whitespace", func() {
		m := header.New()
		Expect(m.Add("X-Test:   value with spaces  \r\n")).To(Succeed())

		v, ok := m.Get("x-test")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("value with spaces"))
	})

	It("rejects a line without a colon", func() {
		m := header.New()
		Expect(m.Add("not a header line\r\n")).To(HaveOccurred())
	})

	It("SetAny fails if either argument is not a string", func() {
		m := header.New()
		Expect(m.SetAny("X", 42)).To(HaveOccurred())
		Expect(m.SetAny(42, "X")).To(HaveOccurred())
		Expect(m.SetAny("X", "42")).To(Succeed())
	})

	It("iterates in insertion order and terminates with the empty-line sentinel", func() {
		m := header.New()
		m.Set("First", "1")
		m.Set("Second", "2")

		var sb strings.Builder
		_, err := m.WriteTo(&sb)
		Expect(err).ToNot(HaveOccurred())

		Expect(sb.String()).To(Equal("First: 1\r\nSecond: 2\r\n\r\n"))
	})

	It("Remove drops a header and keeps the remaining order", func() {
		m := header.New()
		m.Set("A", "1")
		m.Set("B", "2")
		m.Set("C", "3")
		m.Remove("b")

		var sb strings.Builder
		_, _ = m.WriteTo(&sb)
		Expect(sb.String()).To(Equal("A: 1\r\nC: 3\r\n\r\n"))
	})

	It("GetDefault falls back when absent", func() {
		m := header.New()
		Expect(m.GetDefault("missing", "fallback")).To(Equal("fallback"))
	})

	It("Clone is independent of its source", func() {
		m := header.New()
		m.Set("A", "1")

		c := m.Clone()
		c.Set("A", "2")

		v, _ := m.Get("A")
		Expect(v).To(Equal("1"))
	})
})
