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

package blockreader

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

type readerOpts struct {
	band        int
	logger      *slog.Logger
	meter       metric.Meter
	maxInflight int
}

// Option is an option that can be passed to New
//
// Available Options are:
//
// • Band
//
// • Logger
//
// • Meter
//
// • MaxInflightTiles
type Option interface {
	setReaderOpt(ro *readerOpts)
}

type bandOpt struct {
	band int
}

func (bo bandOpt) setReaderOpt(ro *readerOpts) {
	ro.band = bo.band
}

// Band selects the (1-based) band that is read from every dataset. Defaults to 1.
func Band(band int) interface {
	Option
} {
	return bandOpt{band}
}

type loggerOpt struct {
	logger *slog.Logger
}

func (lo loggerOpt) setReaderOpt(ro *readerOpts) {
	ro.logger = lo.logger
}

// Logger sets the logger used by the reader. Nothing is logged by default.
func Logger(logger *slog.Logger) interface {
	Option
} {
	return loggerOpt{logger}
}

type meterOpt struct {
	meter metric.Meter
}

func (mo meterOpt) setReaderOpt(ro *readerOpts) {
	ro.meter = mo.meter
}

// Meter sets the OpenTelemetry meter used to create the reader's instruments.
// A noop meter is used by default.
func Meter(meter metric.Meter) interface {
	Option
} {
	return meterOpt{meter}
}

type maxInflightOpt struct {
	n int
}

func (mo maxInflightOpt) setReaderOpt(ro *readerOpts) {
	ro.maxInflight = mo.n
}

// MaxInflightTiles bounds the number of dispatched tiles whose handler has not
// yet returned. Once the bound is reached, Dispatch blocks until a tile
// completes. By default the number of in-flight tiles is only bounded by memory.
func MaxInflightTiles(n int) interface {
	Option
} {
	return maxInflightOpt{n}
}
