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

// Package config describes the declarative, file-loadable shape of a
// server: listen address, route table, TLS material and the tunables of
// every runtime component (gate, pool, parser limits, logging). It is
// bindable from YAML/TOML/JSON through spf13/viper's mapstructure tags
// and validated with go-playground/validator.
package config

import (
	"fmt"
	"time"

	libval "github.com/go-playground/validator/v10"

	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/router"
)

// Route binds a regex pattern to a named entry in a Registry. The config
// layer only ever knows handlers by name: the concrete router.Constructor
// values live in Go code, registered into a Registry by the program that
// owns them.
type Route struct {
	Pattern string `mapstructure:"pattern" json:"pattern" yaml:"pattern" toml:"pattern" validate:"required"`
	Handler string `mapstructure:"handler" json:"handler" yaml:"handler" toml:"handler" validate:"required"`
}

// Registry maps the handler names a Config's routes reference to the
// constructors that build them.
type Registry map[string]router.Constructor

// Config is the full declarative description of one server.
type Config struct {
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address" validate:"required,hostname_port"`

	Routes      []Route `mapstructure:"routes" json:"routes" yaml:"routes" toml:"routes" validate:"dive"`
	ErrorRoutes []Route `mapstructure:"error_routes" json:"error_routes" yaml:"error_routes" toml:"error_routes" validate:"dive"`

	KeyFile  string `mapstructure:"key_file" json:"key_file" yaml:"key_file" toml:"key_file" validate:"required_with=CertFile"`
	CertFile string `mapstructure:"cert_file" json:"cert_file" yaml:"cert_file" toml:"cert_file" validate:"required_with=KeyFile"`

	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout" json:"keep_alive_timeout" yaml:"keep_alive_timeout" toml:"keep_alive_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`

	NumThreads   int           `mapstructure:"num_threads" json:"num_threads" yaml:"num_threads" toml:"num_threads" validate:"omitempty,min=1"`
	MaxThreads   int           `mapstructure:"max_threads" json:"max_threads" yaml:"max_threads" toml:"max_threads" validate:"omitempty,min=1"`
	MaxQueue     int           `mapstructure:"max_queue" json:"max_queue" yaml:"max_queue" toml:"max_queue" validate:"omitempty,min=1"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`

	MaxLineSize    int `mapstructure:"max_line_size" json:"max_line_size" yaml:"max_line_size" toml:"max_line_size" validate:"omitempty,min=1"`
	MaxHeaders     int `mapstructure:"max_headers" json:"max_headers" yaml:"max_headers" toml:"max_headers" validate:"omitempty,min=1"`
	MaxRequestSize int `mapstructure:"max_request_size" json:"max_request_size" yaml:"max_request_size" toml:"max_request_size" validate:"omitempty,min=1"`

	ServerName string `mapstructure:"server_name" json:"server_name" yaml:"server_name" toml:"server_name"`

	LogSink logger.Config `mapstructure:"log_sink" json:"log_sink" yaml:"log_sink" toml:"log_sink"`
}

// Defaults for fields that may be left zero-valued by a partial config
// file, mirroring the distilled spec's stated defaults.
const (
	DefaultKeepAliveTimeout = 5 * time.Second
	DefaultRequestTimeout   = 20 * time.Second
	DefaultNumThreads       = 6
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultMaxLineSize      = request.MaxLineSize
	DefaultMaxHeaders       = request.MaxHeaders
	DefaultMaxRequestSize   = request.MaxRequestSize
	DefaultServerName       = "webd/0.1"
)

// ApplyDefaults fills every zero-valued tunable field with its documented
// default. It never touches Address, Routes, ErrorRoutes or the TLS
// fields, since those have no sensible default.
func (c *Config) ApplyDefaults() {
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.NumThreads == 0 {
		c.NumThreads = DefaultNumThreads
	}
	if c.MaxThreads == 0 {
		c.MaxThreads = c.NumThreads
	}
	if c.MaxQueue == 0 {
		c.MaxQueue = c.MaxThreads * 4
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxLineSize == 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	if c.MaxHeaders == 0 {
		c.MaxHeaders = DefaultMaxHeaders
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = DefaultMaxRequestSize
	}
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
}

// Validate checks the Config, including the nested LogSink, against their
// struct tags. A Registry is not required to validate: BuildRouter is
// where an unknown handler name is caught.
func (c Config) Validate() error {
	if err := libval.New().Struct(c); err != nil {
		if _, ok := err.(*libval.InvalidValidationError); ok {
			return err
		}

		for _, e := range err.(libval.ValidationErrors) {
			return fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.Namespace(), e.ActualTag())
		}
	}

	return nil
}

// BuildRouter resolves every configured Route and ErrorRoute against reg,
// returning an error naming the first handler that has no registered
// constructor.
func (c Config) BuildRouter(reg Registry) (*router.Router, error) {
	rt := router.New()

	for _, r := range c.Routes {
		build, ok := reg[r.Handler]
		if !ok {
			return nil, fmt.Errorf("config: route %q references unknown handler %q", r.Pattern, r.Handler)
		}
		rt.Handle(r.Pattern, build)
	}

	for _, r := range c.ErrorRoutes {
		build, ok := reg[r.Handler]
		if !ok {
			return nil, fmt.Errorf("config: error route %q references unknown handler %q", r.Pattern, r.Handler)
		}
		rt.HandleError(r.Pattern, build)
	}

	return rt, nil
}
