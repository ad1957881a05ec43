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

// Command webd is a thin launcher demonstrating the stack end to end: it
// loads a YAML/TOML/JSON config file through viper, builds the runtime
// components it describes, and serves until a termination signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github/sabouaram/webd/config"
	"github/sabouaram/webd/connection"
	"github/sabouaram/webd/gate"
	"github/sabouaram/webd/handler"
	"github/sabouaram/webd/logger"
	"github/sabouaram/webd/pool"
	"github/sabouaram/webd/request"
	"github/sabouaram/webd/response"
	"github/sabouaram/webd/server"
)

// welcomeHandler answers every request matching its route with a static
// greeting; it exists so a freshly generated config file serves something
// without requiring custom Go code.
type welcomeHandler struct {
	handler.Base
}

func (h *welcomeHandler) DoGet(_ *request.Request, _ *response.Response) (int, handler.Body) {
	return 200, []byte("webd is up\n")
}

// defaultRegistry is the set of handler names a config file's routes may
// reference out of the box.
func defaultRegistry() config.Registry {
	return config.Registry{
		"welcome": func(_ *request.Request, _ *response.Response, _ []string) handler.Handler {
			h := &welcomeHandler{}
			h.Self = h
			return h
		},
	}
}

func main() {
	configFile := flag.String("config", "webd.yaml", "path to the server configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, "webd:", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.LogSink)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	rt, err := cfg.BuildRouter(defaultRegistry())
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	srv := server.New(server.Config{
		Address:  cfg.Address,
		KeyFile:  cfg.KeyFile,
		CertFile: cfg.CertFile,
		Log:      log,
		Pool: pool.Config{
			NumThreads:   cfg.NumThreads,
			MaxThreads:   cfg.MaxThreads,
			MaxQueue:     cfg.MaxQueue,
			PollInterval: cfg.PollInterval,
			Log:          log,
			Conn: connection.Config{
				ServerName:       cfg.ServerName,
				RequestTimeout:   cfg.RequestTimeout,
				KeepaliveTimeout: cfg.KeepAliveTimeout,
				Router:           rt,
				Gate:             gate.New(log),
				Log:              log,
				MaxLineSize:      cfg.MaxLineSize,
				MaxHeaders:       cfg.MaxHeaders,
				MaxRequestSize:   cfg.MaxRequestSize,
			},
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")
	srv.Stop()

	return nil
}
