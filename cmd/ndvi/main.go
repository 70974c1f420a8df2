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

// Command ndvi computes the normalized difference vegetation index of a pair
// of co-registered nir and red rasters, or any per-pixel expression of a set
// of named rasters, tile by tile.
//
//	ndvi --nir B08.tif --red gs://bucket/B04.tif -o ndvi.tif --mode int16 --cog
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/airbusgeo/blockreader/internal/config"
	"github.com/airbusgeo/blockreader/internal/observability"
	"github.com/airbusgeo/blockreader/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const serviceName = "ndvi"

var configFile string

func init() {
	f := ndviCommand.Flags()
	f.StringVar(&configFile, "config", "", "yaml configuration file (default ./blockreader.yaml if present)")
	f.String("nir", "", "near infrared input (local path or gs://bucket/object)")
	f.String("red", "", "red input (local path or gs://bucket/object)")
	f.StringP("out", "o", "", "output geotiff (local path or gs://bucket/object)")
	f.Bool("cog", false, "rewrite the output as a cloud optimized geotiff")
	f.String("mode", config.DefaultMode, "output mode: float32, int16 (fixed point) or expr")
	f.String("expr", "", "expression over the input names, for --mode=expr")
	f.Int("band", config.DefaultBand, "band of the inputs to read")
	f.IntP("workers", "w", runtime.NumCPU(), "number of reader workers")
	f.Int("max-inflight", 0, "maximum number of tiles being read at once (0: unbounded)")
	f.Int("cache-entries", 0, "number of decoded blocks to keep in memory (0: no cache)")
	f.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	f.String("log-format", config.DefaultLogFormat, "log format: text or json")
	f.String("metrics-addr", "", "serve prometheus metrics on this address while running")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := ndviCommand.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var ndviCommand = &cobra.Command{
	Use:           "ndvi [flags]",
	Short:         "compute a vegetation index from co-registered rasters",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := observability.NewLogger(cmd.ErrOrStderr(), serviceName, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		if cfg.Metrics.Addr == "" {
			_, err = pipeline.Execute(cmd.Context(), cfg, logger, nil)
			return err
		}

		provider, handler, err := observability.PrometheusProvider()
		if err != nil {
			return err
		}
		defer provider.Shutdown(context.Background())

		g, gctx := errgroup.WithContext(cmd.Context())
		srvCtx, stopServer := context.WithCancel(gctx)
		g.Go(func() error {
			return observability.Serve(srvCtx, cfg.Metrics.Addr, handler, logger)
		})
		g.Go(func() error {
			defer stopServer()
			_, err := pipeline.Execute(gctx, cfg, logger, provider.Meter(serviceName))
			return err
		})
		return g.Wait()
	},
}
