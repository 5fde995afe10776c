// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package lisp

import (
	"io"

	"github.com/chzyer/logex"
)

// Version is this port's own semantic version, encoded as
// major*10000 + minor*100 + patch and exposed to user code as #version.
// This is not uniot-lisp itself, so it starts its own series at 0.1.0
// rather than carrying over the original source's 0.2.3.
const (
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
	Version      = VersionMajor*10000 + VersionMinor*100 + VersionPatch
)

// Options configures a new Interpreter, generalizing the original's
// create(heap_bytes) to the handful of knobs below.
type Options struct {
	// HeapBytes is the capacity of each GC semispace. Zero selects
	// heap.DefaultBytes.
	HeapBytes int

	// AlwaysGC forces a full collection on every allocation, surfacing
	// latent root-registration bugs.
	AlwaysGC bool

	// DebugGC emits a per-cycle GC summary through Logger.
	DebugGC bool

	// TaskLimit bounds while-loop iterations. Zero selects
	// eval.DefaultTaskLimit (9999, original_source's MAX_LOOP_ITERATIONS).
	TaskLimit int

	// Logger receives DebugGC summaries and internal error traces. A
	// logger writing to io.Discard is used if nil, so logging is free
	// when unused.
	Logger *logex.Logger

	// Out and Err are the output and error sinks, the equivalent of the
	// original's set_printers. io.Discard is used for either left nil.
	Out io.Writer
	Err io.Writer
}

func (o Options) logger() *logex.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logex.NewLogger(io.Discard)
}

func (o Options) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return io.Discard
}

func (o Options) err() io.Writer {
	if o.Err != nil {
		return o.Err
	}
	return io.Discard
}
