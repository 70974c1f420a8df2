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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned when dispatching to, or joining, a Reader that has
	// already been shut down
	ErrClosed = errors.New("reader is closed")
	// ErrInvalidArgument is returned for malformed arguments
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTileOutOfRange is returned when dispatching a coordinate outside of
	// the tile grid
	ErrTileOutOfRange = errors.New("tile out of range")
	// ErrInvalidDataset is returned when referencing a dataset index that
	// does not exist
	ErrInvalidDataset = errors.New("invalid dataset index")
	// ErrDuplicateDataset is returned when the same dataset index is
	// requested more than once for a single tile
	ErrDuplicateDataset = errors.New("duplicate dataset index")
	// ErrBackendPanic is wrapped by ReadErrors caused by a panicking backend
	ErrBackendPanic = errors.New("backend panic")
	// ErrShapeMismatch is wrapped by ReadErrors when the backend returned a
	// block whose shape differs from the requested window
	ErrShapeMismatch = errors.New("block shape mismatch")
)

// OpenError is returned by New when a source could not be opened
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// GeometryError is returned by New when the size or tile size of the first
// dataset is unavailable
type GeometryError struct {
	Path string
	Err  error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry of %s: %v", e.Path, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// ReadError is the error carried by an Outcome when the block of Dataset for
// tile X,Y could not be read
type ReadError struct {
	Dataset int
	X, Y    int
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read dataset %d tile (%d,%d): %v", e.Dataset, e.X, e.Y, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WorkerFailure records a request whose processing was aborted by a panic
// escaping the completion handler
type WorkerFailure struct {
	Worker int
	X, Y   int
	Value  interface{}
	Stack  []byte
}

func (f *WorkerFailure) Error() string {
	return fmt.Sprintf("worker %d: tile (%d,%d): panic: %v", f.Worker, f.X, f.Y, f.Value)
}

// JoinError is returned by ShutdownAndJoin. It aggregates every failure that
// happened during the lifetime of the Reader.
type JoinError struct {
	Failures []*WorkerFailure
	// Close is set if some dataset handles failed to close
	Close error
}

func (e *JoinError) Error() string {
	msgs := make([]string, 0, len(e.Failures)+1)
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	if e.Close != nil {
		msgs = append(msgs, "close: "+e.Close.Error())
	}
	return fmt.Sprintf("%d failure(s): %s", len(msgs), strings.Join(msgs, "; "))
}

func (e *JoinError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	if e.Close != nil {
		errs = append(errs, e.Close)
	}
	return errs
}
