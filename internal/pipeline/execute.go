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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/blockreader"
	"github.com/airbusgeo/blockreader/bandmath"
	"github.com/airbusgeo/blockreader/gdalio"
	"github.com/airbusgeo/blockreader/internal/config"
	"github.com/airbusgeo/blockreader/internal/remote"
	"github.com/airbusgeo/blockreader/ndvi"
	"github.com/airbusgeo/blockreader/pkg/blockcache"
	"github.com/airbusgeo/cogger"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/metric"
)

// NewTransform builds the Transform selected by cfg
func NewTransform(cfg config.IndexConfig, inputNames []string) (Transform, error) {
	switch cfg.Mode {
	case config.ModeFloat32, config.ModeInt16:
		if len(inputNames) != 2 {
			return nil, fmt.Errorf("%w: got %d inputs", config.ErrNdviInputs, len(inputNames))
		}
		return &ndvi.Index{
			Params: ndvi.Params{
				Offset: cfg.Offset,
				Scale:  cfg.Scale,
				NoData: cfg.NoData,
			},
			FixedPoint: cfg.Mode == config.ModeInt16,
		}, nil
	case config.ModeExpr:
		expr, err := bandmath.Compile(cfg.Expression, inputNames, cfg.NoData)
		if err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidMode, cfg.Mode)
	}
}

// Execute runs the whole computation described by cfg: inputs may be local
// files or gs:// objects, the output is optionally rewritten as a cloud
// optimized geotiff and uploaded.
func Execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, meter metric.Meter) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gdalio.Register()

	paths := cfg.InputPaths()
	var client *storage.Client
	if remote.AnyRemote(append(paths, cfg.Output.Path)...) {
		var err error
		client, err = remote.NewClient(ctx, cfg.Remote.Anonymous)
		if err != nil {
			return Stats{}, err
		}
		defer client.Close()
	}
	if remote.AnyRemote(paths...) {
		if err := remote.RegisterVSI(ctx, client, cfg.Remote.BlockSize, cfg.Remote.NumCachedBlocks); err != nil {
			return Stats{}, err
		}
	}

	var backend blockreader.Backend = gdalio.NewBackend()
	if cfg.Reader.CacheEntries > 0 {
		cache, err := blockcache.NewCache(uint(cfg.Reader.CacheEntries))
		if err != nil {
			return Stats{}, err
		}
		backend = blockcache.New(backend, cache)
	}

	transform, err := NewTransform(cfg.Index, cfg.InputNames())
	if err != nil {
		return Stats{}, err
	}

	width, height, err := probeSize(backend, paths[0])
	if err != nil {
		return Stats{}, err
	}

	// the output is first written locally when it has to be rewritten or uploaded
	staged := cfg.Output.COG || remote.IsRemote(cfg.Output.Path)
	outPath := cfg.Output.Path
	if staged {
		tmpf, err := os.CreateTemp(cfg.Output.TempDir, "*.tif")
		if err != nil {
			return Stats{}, fmt.Errorf("create temp file: %w", err)
		}
		outPath = tmpf.Name()
		tmpf.Close()
		os.Remove(outPath)
		defer os.Remove(outPath)
	}

	out, err := createOutput(outPath, transform, width, height, paths[0], cfg.Output.CreationOptions)
	if err != nil {
		return Stats{}, err
	}

	opts := []blockreader.Option{blockreader.Band(cfg.Reader.Band)}
	if cfg.Reader.MaxInflightTiles > 0 {
		opts = append(opts, blockreader.MaxInflightTiles(cfg.Reader.MaxInflightTiles))
	}
	if meter != nil {
		opts = append(opts, blockreader.Meter(meter))
	}
	job := &Job{
		Backend:   backend,
		Inputs:    paths,
		Workers:   cfg.Reader.Workers,
		Transform: transform,
		Sink:      out,
		Options:   opts,
		Logger:    logger,
	}
	stats, runErr := job.Run(ctx)
	if runErr == nil && cfg.Output.COG {
		runErr = out.BuildOverviews()
	}
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close %s: %w", outPath, err)
	}
	if runErr != nil {
		if !staged {
			runErr = errors.Join(runErr, cleanup(outPath))
		}
		return stats, runErr
	}

	if staged {
		start := time.Now()
		if err := publish(ctx, client, outPath, cfg); err != nil {
			return stats, err
		}
		logger.Info("published output",
			slog.String("path", cfg.Output.Path),
			slog.Bool("cog", cfg.Output.COG),
			slog.Duration("duration", time.Since(start)))
	}

	attrs := []any{
		slog.String("output", cfg.Output.Path),
		slog.String("size", fmt.Sprintf("%dx%d", stats.Width, stats.Height)),
		slog.String("pixels", humanize.Comma(stats.Pixels)),
		slog.Int("tiles", stats.Tiles),
		slog.Int("failed_tiles", stats.Failed),
		slog.Duration("duration", stats.Duration),
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		attrs = append(attrs, slog.String("throughput", humanize.SIWithDigits(float64(stats.Pixels)/secs, 1, "px/s")))
	}
	if !remote.IsRemote(cfg.Output.Path) {
		if st, err := os.Stat(cfg.Output.Path); err == nil {
			attrs = append(attrs, slog.String("file_size", humanize.Bytes(uint64(st.Size()))))
		}
	}
	logger.Info("computation complete", attrs...)
	return stats, nil
}

func probeSize(backend blockreader.Backend, path string) (int, int, error) {
	h, err := backend.Open(path)
	if err != nil {
		return 0, 0, &blockreader.OpenError{Path: path, Err: err}
	}
	defer h.Close()
	width, height, err := h.Size()
	if err != nil {
		return 0, 0, &blockreader.GeometryError{Path: path, Err: err}
	}
	return width, height, nil
}

type scaledTransform interface {
	ScaleOffset() (scale, offset float64, ok bool)
}

type describedTransform interface {
	Description() string
}

func createOutput(path string, t Transform, width, height int, georef string, creationOptions []string) (*gdalio.Output, error) {
	out, err := gdalio.Create(path, t.DataType(), width, height, creationOptions...)
	if err != nil {
		return nil, err
	}
	err = func() error {
		if err := out.CopyGeoreferencing(georef); err != nil {
			return err
		}
		if err := out.SetNoData(t.NoData()); err != nil {
			return fmt.Errorf("set nodata: %w", err)
		}
		if st, ok := t.(scaledTransform); ok {
			if scale, offset, ok := st.ScaleOffset(); ok {
				if err := out.SetScaleOffset(scale, offset); err != nil {
					return fmt.Errorf("set scale/offset: %w", err)
				}
			}
		}
		if dt, ok := t.(describedTransform); ok {
			if err := out.SetDescription(dt.Description()); err != nil {
				return fmt.Errorf("set description: %w", err)
			}
		}
		return nil
	}()
	if err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}

// publish copies the staged output at path to its final destination,
// rewriting it as a cloud optimized geotiff if requested.
func publish(ctx context.Context, client *storage.Client, path string, cfg *config.Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("re-open %s: %w", path, err)
	}
	defer f.Close()

	w, err := remote.NewWriter(ctx, client, cfg.Output.Path, cfg.Remote.BillingProject)
	if err != nil {
		return err
	}
	if cfg.Output.COG {
		err = cogger.Rewrite(w, f)
		if err != nil {
			err = fmt.Errorf("cogger.rewrite: %w", err)
		}
	} else {
		_, err = io.Copy(w, f)
	}
	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", cfg.Output.Path, cerr)
	}
	if err != nil {
		return errors.Join(err, cleanup(cfg.Output.Path))
	}
	return nil
}

// cleanup removes a partially written local output
func cleanup(path string) error {
	if remote.IsRemote(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
