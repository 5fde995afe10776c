// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package lisp

import (
	"errors"
	"fmt"

	"github.com/chzyer/logex"

	"github.com/uniot-io/go-minilisp/internal/eval"
	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/reader"
)

// Kind classifies a host-facing error by the reason evaluation stopped.
type Kind int

const (
	KindParse Kind = iota
	KindType
	KindArity
	KindBinding
	KindArithmetic
	KindResource
	KindDiscipline
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindType:
		return "type"
	case KindArity:
		return "arity"
	case KindBinding:
		return "binding"
	case KindArithmetic:
		return "arithmetic"
	case KindResource:
		return "resource"
	case KindDiscipline:
		return "discipline"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type returned to hosts, carrying the original's
// error_index() byte offset alongside the message and taxonomy kind.
type Error struct {
	Kind   Kind
	Msg    string
	Offset int
	err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (at byte %d)", e.Kind, e.Msg, e.Offset)
}

func (e *Error) Unwrap() error { return e.err }

// ErrOutOfMemory is the sentinel a host can match with errors.Is against
// an Error returned from EvalSource.
var ErrOutOfMemory = heap.ErrOutOfMemory

// ErrNotCreated is returned by any Interpreter method other than New/IsCreated
// called after Close, or before a successful New.
var ErrNotCreated = errors.New("lisp: interpreter is not created")

func evalKind(k eval.Kind) Kind {
	switch k {
	case eval.KindType:
		return KindType
	case eval.KindArity:
		return KindArity
	case eval.KindBinding:
		return KindBinding
	case eval.KindArithmetic:
		return KindArithmetic
	case eval.KindResource:
		return KindResource
	case eval.KindDiscipline:
		return KindDiscipline
	default:
		return KindInternal
	}
}

// wrapError converts an internal package error (reader.ParseError,
// eval.Error, heap.ErrOutOfMemory, or a bare panic value recovered at the
// EvalSource boundary) into a host-facing *Error carrying a byte offset.
func wrapError(err error, offset int, logger *logex.Logger) *Error {
	var parseErr *reader.ParseError
	if errors.As(err, &parseErr) {
		return &Error{Kind: KindParse, Msg: parseErr.Msg, Offset: parseErr.Offset, err: err}
	}
	var evalErr *eval.Error
	if errors.As(err, &evalErr) {
		return &Error{Kind: evalKind(evalErr.Kind), Msg: evalErr.Msg, Offset: offset, err: err}
	}
	if errors.Is(err, heap.ErrOutOfMemory) {
		return &Error{Kind: KindResource, Msg: err.Error(), Offset: offset, err: err}
	}
	// An error that is none of the above is an internal invariant
	// violation (an unexpected tag seen by the GC, a recovered panic) —
	// trace it through logex before handing it back so the host's log
	// sink carries a file:line breadcrumb even though the returned Error
	// itself is the plain, comparable type above.
	logger.Printf("internal error: %v", logex.Trace(err))
	return &Error{Kind: KindInternal, Msg: err.Error(), Offset: offset, err: err}
}
