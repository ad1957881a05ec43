/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

package logger

import (
	"fmt"

	libval "github.com/go-playground/validator/v10"
)

// Config describes where the two log streams (server log, access log) are
// routed. Both default to stderr when left zero-valued.
type Config struct {
	// ServerLogFile, if non-empty, routes the server log to this path in
	// addition to stderr.
	ServerLogFile string `mapstructure:"server_log_file" json:"server_log_file" yaml:"server_log_file" toml:"server_log_file"`

	// AccessLogFile, if non-empty, routes the access log to this path
	// instead of stderr.
	AccessLogFile string `mapstructure:"access_log_file" json:"access_log_file" yaml:"access_log_file" toml:"access_log_file"`

	// Level is the minimal server-log level: debug, info, warn, error.
	Level string `mapstructure:"level" json:"level" yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`

	// DisableAccessLog turns the access log into a no-op sink.
	DisableAccessLog bool `mapstructure:"disable_access_log" json:"disable_access_log" yaml:"disable_access_log" toml:"disable_access_log"`
}

// Validate checks the Config against its struct tags.
func (c Config) Validate() error {
	if err := libval.New().Struct(c); err != nil {
		if _, ok := err.(*libval.InvalidValidationError); ok {
			return err
		}

		for _, e := range err.(libval.ValidationErrors) {
			return fmt.Errorf("logger config field '%s' is not validated by constraint '%s'", e.Namespace(), e.ActualTag())
		}
	}

	return nil
}
