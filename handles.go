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
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// handleSet holds one handle per dataset for each worker: worker i only ever
// touches handleSet[i].
type handleSet [][]Handle

// openHandles opens every path once per worker. Opens happen in parallel. On
// failure, all handles that were successfully opened are closed again.
func openHandles(ctx context.Context, backend Backend, paths []string, workers int) (handleSet, error) {
	hs := make(handleSet, workers)
	for w := range hs {
		hs[w] = make([]Handle, len(paths))
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for w := 0; w < workers; w++ {
		for d, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return &OpenError{Path: path, Err: err}
				}
				h, err := backend.Open(path)
				if err != nil {
					return &OpenError{Path: path, Err: err}
				}
				hs[w][d] = h
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		_ = hs.close()
		return nil, err
	}
	return hs, nil
}

func (hs handleSet) close() error {
	var errs []error
	for _, handles := range hs {
		for _, h := range handles {
			if h == nil {
				continue
			}
			if err := h.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
