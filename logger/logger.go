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

// Package logger implements the runtime's two log streams: a structured
// server log (INFO/WARN/ERROR, backed by logrus) and a Common Log Format
// access log. Each stream owns its own *logrus.Logger instance, which
// internally serializes writes, giving each stream its own lock as the
// distilled design calls for.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FuncLog is a constructor for a Logger, used for dependency injection.
type FuncLog func() Logger

// Option customizes a Logger beyond what Config expresses. Tests use this to
// redirect a stream to an in-memory buffer instead of a file or stderr.
type Option func(*logger)

// WithServerWriter replaces the server-log destination, including stderr and
// any file Config.ServerLogFile opened.
func WithServerWriter(w io.Writer) Option {
	return func(l *logger) { l.srv.SetOutput(w) }
}

// WithAccessWriter overrides the access-log destination.
func WithAccessWriter(w io.Writer) Option {
	return func(l *logger) { l.acc.SetOutput(w) }
}

// Logger is the server-facing logging surface. Access logging is exposed
// separately via Request, so callers that only need structured logs are not
// forced to carry CLF formatting concerns.
type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)

	// Exception logs err at ERROR level with a stack trace, each
	// continuation line indented by one tab.
	Exception(message string, err error)

	// Request emits one Common Log Format access-log line:
	//   <host> <rfc931> <authuser> [DD/Mon/YYYY:HH:MM:SS ±ZZZZ] "<request-line>" <code> <size>
	Request(host, requestLine string, code int, size int64, rfc931, authuser string)
}

type logger struct {
	srv *logrus.Logger
	acc *logrus.Logger
}

// clfFormatter renders a logrus entry as its bare message plus a trailing
// newline, with none of the level/timestamp/quoting machinery TextFormatter
// adds. The access log's entry message is already a complete CLF line.
type clfFormatter struct{}

func (clfFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

// New builds a Logger from cfg. A zero-valued Config logs both streams to
// stderr at info level. Opts are applied after cfg, and take precedence.
func New(cfg Config, opts ...Option) (Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srv := logrus.New()
	srv.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl := logrus.InfoLevel
	if cfg.Level != "" {
		if parsed, err := logrus.ParseLevel(cfg.Level); err == nil {
			lvl = parsed
		}
	}
	srv.SetLevel(lvl)

	if cfg.ServerLogFile != "" {
		f, err := os.OpenFile(cfg.ServerLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: opening server log file: %w", err)
		}
		srv.SetOutput(io.MultiWriter(os.Stderr, f))
	} else {
		srv.SetOutput(os.Stderr)
	}

	acc := logrus.New()
	acc.SetFormatter(clfFormatter{})

	if cfg.DisableAccessLog {
		acc.SetOutput(io.Discard)
	} else if cfg.AccessLogFile != "" {
		f, err := os.OpenFile(cfg.AccessLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: opening access log file: %w", err)
		}
		acc.SetOutput(f)
	} else {
		acc.SetOutput(os.Stderr)
	}

	l := &logger{srv: srv, acc: acc}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

func (l *logger) Debug(message string, args ...any) { l.srv.Debugf(message, args...) }
func (l *logger) Info(message string, args ...any)  { l.srv.Infof(message, args...) }
func (l *logger) Warn(message string, args ...any)  { l.srv.Warnf(message, args...) }
func (l *logger) Error(message string, args ...any) { l.srv.Errorf(message, args...) }

// Exception logs message at ERROR level through the normal formatter, then
// appends err and a goroutine stack trace directly to the stream, one
// continuation line per frame, each indented by a single tab. The trace is
// written unformatted so the indentation survives verbatim instead of being
// escaped by the structured-log formatter.
func (l *logger) Exception(message string, err error) {
	l.srv.Error(message)

	if err == nil {
		return
	}

	var sb strings.Builder
	sb.WriteByte('\t')
	sb.WriteString(err.Error())

	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, false)
	for _, line := range strings.Split(strings.TrimRight(string(buf[:n]), "\n"), "\n") {
		sb.WriteByte('\n')
		sb.WriteByte('\t')
		sb.WriteString(line)
	}
	sb.WriteByte('\n')

	_, _ = io.WriteString(l.srv.Out, sb.String())
}

func (l *logger) Request(host, requestLine string, code int, size int64, rfc931, authuser string) {
	if rfc931 == "" {
		rfc931 = "-"
	}
	if authuser == "" {
		authuser = "-"
	}

	l.acc.Infof(`%s %s %s [%s] "%s" %d %d`,
		host, rfc931, authuser, clfTimestamp(time.Now()), requestLine, code, size)
}

// clfTimestamp formats t as "[DD/Mon/YYYY:HH:MM:SS ±ZZZZ]" without the
// surrounding brackets (the caller supplies those).
func clfTimestamp(t time.Time) string {
	return t.Format("02/Jan/2006:15:04:05 -0700")
}
