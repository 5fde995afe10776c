// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package eval implements the evaluator: tag dispatch, lexical lookup,
// function/macro application and the combined primitive/special-form
// catalogue, keyed on object.Tag rather than a syntax-tree node kind.
package eval

import (
	"fmt"
	"io"

	"github.com/uniot-io/go-minilisp/internal/env"
	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/printer"
	"github.com/uniot-io/go-minilisp/internal/reader"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// Kind classifies an error for the taxonomy 
type Kind int

const (
	KindType Kind = iota
	KindArity
	KindBinding
	KindArithmetic
	KindResource
	KindDiscipline
	KindInternal
)

// Error is the evaluator's error type, matching ordinary (value, error)
// Go propagation rather than panic/recover for non-local transfer.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// PrimitiveFunc is the native-callable signature: it receives
// the current environment and the unevaluated argument list and decides
// for itself which (if any) arguments to evaluate.
type PrimitiveFunc func(ev *Evaluator, env object.Ref, args object.Ref) (object.Ref, error)

type primEntry struct {
	name string
	fn   PrimitiveFunc
}

// Evaluator holds everything the dispatch loop and the primitive table
// need: the heap, the root registry, the primitive table indexed by
// PrimitiveIndex, and the cooperative/resource-bound state 
type Evaluator struct {
	H   *heap.Heap
	Reg *root.Registry

	Out io.Writer
	Err io.Writer

	// Yield is invoked once per while iteration. Nil
	// means no host cooperation hook is registered.
	Yield func() error

	// Cancel is polled once per while iteration; when it reports true the
	// loop stops with a discipline error, giving the host an early,
	// cooperative cancellation point.
	Cancel func() bool

	// TaskLimit bounds the number of while iterations.
	TaskLimit int

	primitives []primEntry
	constants  map[string]bool // names bound as constants by DefineConstants/AddConstant*

	gensymCounter int
	whileActive   bool
}

// New creates an Evaluator over h/reg with the default task limit. Callers
// still need to call DefineConstants/DefinePrimitives against a fresh
// global environment before evaluating user code.
func New(h *heap.Heap, reg *root.Registry) *Evaluator {
	return &Evaluator{
		H:         h,
		Reg:       reg,
		Out:       io.Discard,
		Err:       io.Discard,
		TaskLimit: DefaultTaskLimit,
		constants: make(map[string]bool),
	}
}

// DefaultTaskLimit is original_source/src/libminilisp.h's MAX_LOOP_ITERATIONS.
const DefaultTaskLimit = 9999

// addPrimitiveFunc appends fn to ev's native table and returns its index.
// Callers append in lockstep with the index they bind into the environment.
func (ev *Evaluator) addPrimitiveFunc(name string, fn PrimitiveFunc) uint32 {
	idx := uint32(len(ev.primitives))
	ev.primitives = append(ev.primitives, primEntry{name: name, fn: fn})
	return idx
}

// intern is a small convenience wrapper so primitive bodies don't need to
// import internal/reader directly.
func (ev *Evaluator) intern(name string) (object.Ref, error) {
	return reader.Intern(ev.H, ev.Reg, name)
}

func truthy(v object.Ref) bool {
	return v != object.Nil
}

func boolRef(b bool) object.Ref {
	if b {
		return object.True
	}
	return object.Nil
}

func listLen(h *heap.Heap, list object.Ref) int {
	n := 0
	for p := list; p != object.Nil; p = h.Cdr(p) {
		n++
	}
	return n
}

// Eval evaluates expr in env.
func Eval(ev *Evaluator, envRef, expr object.Ref) (object.Ref, error) {
	switch expr {
	case object.Nil, object.True:
		return expr, nil
	case object.Dot, object.Cparen:
		return object.Nil, newErr(KindInternal, "eval: encountered a bare %v outside the reader", expr)
	}

	switch ev.H.Tag(expr) {
	case object.TagInt, object.TagPrimitive, object.TagFunction, object.TagMacro:
		return expr, nil
	case object.TagSymbol:
		cell, ok := env.Lookup(ev.H, envRef, expr)
		if !ok {
			return object.Nil, newErr(KindBinding, "Undefined symbol: %s", ev.H.SymbolName(expr))
		}
		return env.Value(ev.H, cell), nil
	case object.TagCell:
		return evalApplication(ev, envRef, expr)
	case object.TagEnv:
		return expr, nil
	default:
		return object.Nil, newErr(KindInternal, "eval: unknown tag %v", ev.H.Tag(expr))
	}
}

// evalApplication handles a Cell form (head . args): macroexpansion first,
// then ordinary primitive/function dispatch.
func evalApplication(ev *Evaluator, envRef, form object.Ref) (object.Ref, error) {
	head := ev.H.Car(form)
	args := ev.H.Cdr(form)

	if !head.IsSingleton() && ev.H.Tag(head) == object.TagSymbol {
		if cell, ok := env.Lookup(ev.H, envRef, head); ok {
			callee := env.Value(ev.H, cell)
			if !callee.IsSingleton() && ev.H.Tag(callee) == object.TagMacro {
				expansion, err := applyClosure(ev, envRef, callee, args, false)
				if err != nil {
					return object.Nil, err
				}
				return Eval(ev, envRef, expansion)
			}
		}
	}

	callee, err := Eval(ev, envRef, head)
	if err != nil {
		return object.Nil, err
	}
	return apply(ev, envRef, callee, args)
}

// apply dispatches to a Primitive or Function callee with the unevaluated
// argument list args.
func apply(ev *Evaluator, envRef, callee, args object.Ref) (object.Ref, error) {
	if callee.IsSingleton() {
		return object.Nil, newErr(KindType, "not callable: %s", printer.Sprint(ev.H, callee))
	}
	switch ev.H.Tag(callee) {
	case object.TagPrimitive:
		idx := ev.H.PrimitiveIndex(callee)
		if int(idx) >= len(ev.primitives) {
			return object.Nil, newErr(KindInternal, "eval: primitive index %d out of range", idx)
		}
		return ev.primitives[idx].fn(ev, envRef, args)
	case object.TagFunction:
		return applyClosure(ev, envRef, callee, args, true)
	default:
		return object.Nil, newErr(KindType, "not callable: %s", printer.Sprint(ev.H, callee))
	}
}

// applyClosure applies a Function or Macro. evalArgs selects whether the
// argument forms are evaluated (Function) or passed through raw (Macro),
// per "Functions evaluate their arguments before binding;
// macros do not."
func applyClosure(ev *Evaluator, callerEnv, closure, args object.Ref, evalArgs bool) (object.Ref, error) {
	frame, hParams, hBody, hClosureEnv, hNewEnv := ev.Reg.PushFrame4()
	_ = frame
	defer ev.Reg.PopFrame()

	*hParams = ev.H.FuncParams(closure)
	*hBody = ev.H.FuncBody(closure)
	*hClosureEnv = ev.H.FuncEnv(closure)

	newEnv, err := env.New(ev.H, ev.Reg, *hClosureEnv)
	if err != nil {
		return object.Nil, err
	}
	*hNewEnv = newEnv

	if err := bindParams(ev, callerEnv, *hNewEnv, *hParams, args, evalArgs); err != nil {
		return object.Nil, err
	}

	return evalSequence(ev, *hNewEnv, *hBody)
}

// bindParams binds params (a proper or dotted list of symbols) to args in
// newEnv, evaluating each argument form against callerEnv first when
// evalArgs is set.
func bindParams(ev *Evaluator, callerEnv, newEnv, params, args object.Ref, evalArgs bool) error {
	p := params
	a := args
	for {
		if p == object.Nil {
			if a != object.Nil {
				return newErr(KindBinding, "argument count mismatch")
			}
			return nil
		}
		if !p.IsSingleton() && ev.H.Tag(p) == object.TagSymbol {
			// Dotted tail: bind the remaining arguments as a list.
			rest, err := evalRestArgs(ev, callerEnv, a, evalArgs)
			if err != nil {
				return err
			}
			return env.Define(ev.H, ev.Reg, newEnv, p, rest)
		}
		if a == object.Nil {
			return newErr(KindBinding, "argument count mismatch")
		}
		sym := ev.H.Car(p)
		var val object.Ref
		var err error
		if evalArgs {
			val, err = Eval(ev, callerEnv, ev.H.Car(a))
		} else {
			val = ev.H.Car(a)
		}
		if err != nil {
			return err
		}
		if err := env.Define(ev.H, ev.Reg, newEnv, sym, val); err != nil {
			return err
		}
		p = ev.H.Cdr(p)
		a = ev.H.Cdr(a)
	}
}

// evalRestArgs evaluates (or passes through) the remaining argument forms
// for a dotted parameter tail and conses them into a fresh list.
func evalRestArgs(ev *Evaluator, callerEnv, args object.Ref, evalArgs bool) (object.Ref, error) {
	if !evalArgs {
		return args, nil
	}
	return evalArgsList(ev, callerEnv, args)
}

// evalSequence evaluates each form in forms in order (an implicit progn),
// returning the value of the last one, or Nil for an empty sequence.
func evalSequence(ev *Evaluator, envRef, forms object.Ref) (object.Ref, error) {
	result := object.Nil
	for p := forms; p != object.Nil; p = ev.H.Cdr(p) {
		v, err := Eval(ev, envRef, ev.H.Car(p))
		if err != nil {
			return object.Nil, err
		}
		result = v
	}
	return result, nil
}

// evalArgsList evaluates each element of args against envRef and conses
// the results into a fresh list, keeping every intermediate value in one
// root frame for the whole operation so a GC triggered by any Cons call
// cannot strand an already-evaluated-but-not-yet-consed value.
func evalArgsList(ev *Evaluator, envRef, args object.Ref) (object.Ref, error) {
	n := listLen(ev.H, args)
	frame := ev.Reg.PushFrame(n + 1)
	defer ev.Reg.PopFrame()

	i := 0
	for p := args; p != object.Nil; p = ev.H.Cdr(p) {
		v, err := Eval(ev, envRef, ev.H.Car(p))
		if err != nil {
			return object.Nil, err
		}
		*frame.Slot(i) = v
		i++
	}

	result := frame.Slot(n)
	*result = object.Nil
	for i := n - 1; i >= 0; i-- {
		cell, err := ev.H.Cons(ev.Reg, *frame.Slot(i), *result)
		if err != nil {
			return object.Nil, err
		}
		*result = cell
	}
	return *result, nil
}

// withEvalArgs evaluates every element of args against envRef into a
// shared root frame and hands the resulting slice of Refs to fn before the
// frame is popped. fn must not retain the slice past its own return.
func withEvalArgs(ev *Evaluator, envRef, args object.Ref, fn func(vals []object.Ref) (object.Ref, error)) (object.Ref, error) {
	n := listLen(ev.H, args)
	frame := ev.Reg.PushFrame(n)
	defer ev.Reg.PopFrame()

	i := 0
	for p := args; p != object.Nil; p = ev.H.Cdr(p) {
		v, err := Eval(ev, envRef, ev.H.Car(p))
		if err != nil {
			return object.Nil, err
		}
		*frame.Slot(i) = v
		i++
	}
	vals := make([]object.Ref, n)
	for i := range vals {
		vals[i] = *frame.Slot(i)
	}
	return fn(vals)
}

// EvalHostPrimitive evaluates every argument form in args against envRef
// and hands the resulting values to fn, for use by host-installed
// primitives (lisp.Interpreter.AddPrimitive) that always want ordinary
// evaluated-argument semantics rather than raw forms.
func EvalHostPrimitive(ev *Evaluator, envRef, args object.Ref, fn func(vals []object.Ref) (object.Ref, error)) (object.Ref, error) {
	return withEvalArgs(ev, envRef, args, fn)
}

func requireInt(h *heap.Heap, v object.Ref, what string) (int64, error) {
	if v.IsSingleton() || h.Tag(v) != object.TagInt {
		return 0, newErr(KindType, "%s: expected an integer, got %s", what, printer.Sprint(h, v))
	}
	return h.Int(v), nil
}

func requireCell(h *heap.Heap, v object.Ref, what string) error {
	if v.IsSingleton() || h.Tag(v) != object.TagCell {
		return newErr(KindType, "%s: expected a cell, got %s", what, printer.Sprint(h, v))
	}
	return nil
}

func requireSymbol(h *heap.Heap, v object.Ref, what string) error {
	if v.IsSingleton() || h.Tag(v) != object.TagSymbol {
		return newErr(KindType, "%s: expected a symbol, got %s", what, printer.Sprint(h, v))
	}
	return nil
}
