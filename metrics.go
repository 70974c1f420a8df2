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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReadsTotal     = "blockreader.reads.total"
	metricReadDuration   = "blockreader.read.duration.seconds"
	metricTilesCompleted = "blockreader.tiles.completed"
	metricTilesInflight  = "blockreader.tiles.inflight"
	metricWorkerFailures = "blockreader.worker.failures"

	attrStatus  = "status"
	attrDataset = "dataset"

	statusOK    = "ok"
	statusError = "error"
)

// readBucketBoundaries covers cached reads up to slow remote object fetches
var readBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type readerMetrics struct {
	reads        metric.Int64Counter
	readDuration metric.Float64Histogram
	tiles        metric.Int64Counter
	inflight     metric.Int64UpDownCounter
	failures     metric.Int64Counter
}

func newReaderMetrics(mt metric.Meter) (*readerMetrics, error) {
	reads, err := mt.Int64Counter(metricReadsTotal,
		metric.WithDescription("Total number of block reads"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReadsTotal, err)
	}
	readDuration, err := mt.Float64Histogram(metricReadDuration,
		metric.WithDescription("Block read duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(readBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReadDuration, err)
	}
	tiles, err := mt.Int64Counter(metricTilesCompleted,
		metric.WithDescription("Total number of tiles handed to their handler"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTilesCompleted, err)
	}
	inflight, err := mt.Int64UpDownCounter(metricTilesInflight,
		metric.WithDescription("Number of dispatched tiles not yet completed"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTilesInflight, err)
	}
	failures, err := mt.Int64Counter(metricWorkerFailures,
		metric.WithDescription("Total number of panics recovered in workers"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWorkerFailures, err)
	}
	return &readerMetrics{
		reads:        reads,
		readDuration: readDuration,
		tiles:        tiles,
		inflight:     inflight,
		failures:     failures,
	}, nil
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

func (rm *readerMetrics) recordRead(ctx context.Context, dataset int, err error, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Int(attrDataset, dataset),
		attribute.String(attrStatus, status(err)),
	)
	rm.reads.Add(ctx, 1, attrs)
	rm.readDuration.Record(ctx, d.Seconds(), attrs)
}

func (rm *readerMetrics) tileDispatched(ctx context.Context) {
	rm.inflight.Add(ctx, 1)
}

func (rm *readerMetrics) tileCompleted(ctx context.Context, err error) {
	rm.inflight.Add(ctx, -1)
	rm.tiles.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status(err))))
}

func (rm *readerMetrics) workerFailure(ctx context.Context) {
	rm.failures.Add(ctx, 1)
}
