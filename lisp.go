// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package lisp is the public embedding surface for go-minilisp: create an
// Interpreter, feed it source text, read back printed results or errors.
// Every other package in this module is internal/* — hosts only ever talk
// to the types here, a thin embedding interface over an internal engine.
package lisp

import (
	"fmt"
	"io"

	"github.com/uniot-io/go-minilisp/internal/env"
	"github.com/uniot-io/go-minilisp/internal/eval"
	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/printer"
	"github.com/uniot-io/go-minilisp/internal/reader"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// Interpreter is one instance of the language runtime. Its
// zero value is not usable; construct one with New.
type Interpreter struct {
	opt Options

	h   *heap.Heap
	reg *root.Registry
	ev  *eval.Evaluator
	env object.Ref

	created         bool
	cycleInProgress bool
}

// New creates and initializes a fresh Interpreter, the equivalent of the
// original's create(heap_bytes). Each call returns a new, independent
// Interpreter.
func New(opt Options) (*Interpreter, error) {
	it := &Interpreter{}
	if err := it.init(opt); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Interpreter) init(opt Options) error {
	if it.created {
		return nil
	}
	logger := opt.logger()
	h, err := heap.New(heap.Options{
		Bytes:    opt.HeapBytes,
		AlwaysGC: opt.AlwaysGC,
		DebugGC:  opt.DebugGC,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	reg := &root.Registry{}
	ev := eval.New(h, reg)
	ev.Out = opt.out()
	ev.Err = opt.err()
	if opt.TaskLimit > 0 {
		ev.TaskLimit = opt.TaskLimit
	}

	frame, hEnv := reg.PushFrame1()
	_ = frame
	globalEnv, err := env.New(h, reg, object.Nil)
	if err != nil {
		reg.PopFrame()
		h.Close()
		return err
	}
	*hEnv = globalEnv

	if err := eval.DefineConstants(ev, *hEnv, Version); err != nil {
		reg.PopFrame()
		h.Close()
		return err
	}
	if err := eval.DefinePrimitives(ev, *hEnv); err != nil {
		reg.PopFrame()
		h.Close()
		return err
	}
	reg.PopFrame()

	it.opt = opt
	it.h = h
	it.reg = reg
	it.ev = ev
	it.env = globalEnv
	it.created = true
	return nil
}

// Close releases the active semispace and resets all per-instance state
// (destroy()).
func (it *Interpreter) Close() {
	if !it.created {
		return
	}
	it.h.Close()
	it.h = nil
	it.reg = nil
	it.ev = nil
	it.env = object.Nil
	it.created = false
}

// IsCreated reports whether the interpreter is currently live.
func (it *Interpreter) IsCreated() bool { return it.created }

// SetPrinters registers the output and error sinks. Either
// may be nil to discard.
func (it *Interpreter) SetPrinters(out, err io.Writer) error {
	if !it.created {
		return ErrNotCreated
	}
	if out == nil {
		out = io.Discard
	}
	if err == nil {
		err = io.Discard
	}
	it.ev.Out = out
	it.ev.Err = err
	return nil
}

// SetCycleYield registers the cooperative yield callback invoked once per
// while iteration.
func (it *Interpreter) SetCycleYield(fn func() error) error {
	if !it.created {
		return ErrNotCreated
	}
	it.ev.Yield = fn
	return nil
}

// SetCancel registers a host-settable early-cancellation predicate, polled
// once per while iteration.
func (it *Interpreter) SetCancel(fn func() bool) error {
	if !it.created {
		return ErrNotCreated
	}
	it.ev.Cancel = fn
	return nil
}

// MemUsed returns bytes consumed in the active semispace.
func (it *Interpreter) MemUsed() (int, error) {
	if !it.created {
		return 0, ErrNotCreated
	}
	return it.h.Stats().InUse, nil
}

// Stats returns the heap's full resource-usage snapshot, the richer
// sibling of MemUsed, folding in counters from the original's memcheck.h.
func (it *Interpreter) Stats() (heap.Stats, error) {
	if !it.created {
		return heap.Stats{}, ErrNotCreated
	}
	return it.h.Stats(), nil
}

// AddPrimitive installs an additional native callable under name, for host
// bridge functions like the original's task, tojs, defjs — the host bridge
// itself is out of scope, but this extension point is not.
func (it *Interpreter) AddPrimitive(name string, fn func(it *Interpreter, args []Value) (Value, error)) error {
	if !it.created {
		return ErrNotCreated
	}
	return eval.AddPrimitive(it.ev, it.env, name, func(ev *eval.Evaluator, envRef, args object.Ref) (object.Ref, error) {
		return eval.EvalHostPrimitive(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
			wrapped := make([]Value, len(vals))
			for i, v := range vals {
				wrapped[i] = Value{h: it.h, ref: v}
			}
			result, err := fn(it, wrapped)
			if err != nil {
				return object.Nil, err
			}
			return result.ref, nil
		})
	})
}

// AddConstant installs name bound to a fixed value.
func (it *Interpreter) AddConstant(name string, v Value) error {
	if !it.created {
		return ErrNotCreated
	}
	return eval.AddConstant(it.ev, it.env, name, v.ref)
}

// AddConstantInt installs name bound to the integer n.
func (it *Interpreter) AddConstantInt(name string, n int64) error {
	if !it.created {
		return ErrNotCreated
	}
	return eval.AddConstantInt(it.ev, it.env, name, n)
}

// Value is an opaque handle to a heap value surfaced to a host through
// AddPrimitive/AddConstant. It deliberately exposes no raw pointer or
// offset.
type Value struct {
	h   *heap.Heap
	ref object.Ref
}

// String returns v's printed representation.
func (v Value) String() string {
	if v.h == nil {
		return "()"
	}
	return printer.Sprint(v.h, v.ref)
}

// EvalSource parses and evaluates every top-level form in src in order,
// returning the printed representation of the last form's value. On the
// first error, reading stops; the error is returned together with the
// byte offset into src at which it occurred. The interpreter remains
// usable for a subsequent EvalSource call regardless of outcome.
func (it *Interpreter) EvalSource(src string) (result string, err error) {
	if !it.created {
		return "", ErrNotCreated
	}
	if it.cycleInProgress {
		return "", &Error{Kind: KindDiscipline, Msg: "eval_source called reentrantly"}
	}
	it.cycleInProgress = true
	defer func() { it.cycleInProgress = false }()

	rd := reader.New(it.h, it.reg, []byte(src))

	defer func() {
		if r := recover(); r != nil {
			err = wrapError(fmt.Errorf("panic: %v", r), rd.Pos(), it.opt.logger())
			result = ""
		}
	}()

	last := object.Ref(object.Nil)
	for {
		_, hForm := it.reg.PushFrame1()
		offset := rd.Pos()
		form, rerr := rd.Read()
		if rerr == io.EOF {
			it.reg.PopFrame()
			break
		}
		if rerr != nil {
			it.reg.PopFrame()
			return "", wrapError(rerr, offset, it.opt.logger())
		}
		*hForm = form

		v, eerr := eval.Eval(it.ev, it.env, *hForm)
		it.reg.PopFrame()
		if eerr != nil {
			return "", wrapError(eerr, offset, it.opt.logger())
		}
		last = v
	}
	return printer.Sprint(it.h, last), nil
}
