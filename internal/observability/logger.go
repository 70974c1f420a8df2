// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability builds the logger and the metrics exporter of the
// ndvi command.
package observability

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const attrService = "service"

// ErrInvalidLogFormat is returned for formats other than "text" and "json".
var ErrInvalidLogFormat = errors.New("invalid log format")

// NewLogger returns a logger writing records of at least level to w, in the
// given format ("text" or "json"), tagged with the service name.
func NewLogger(w io.Writer, service, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var inner slog.Handler
	switch format {
	case "json":
		inner = slog.NewJSONHandler(w, handlerOpts)
	case "text", "":
		inner = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, format)
	}
	return slog.New(inner.WithAttrs([]slog.Attr{slog.String(attrService, service)})), nil
}
