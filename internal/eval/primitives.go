// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package eval

import (
	"fmt"

	"github.com/uniot-io/go-minilisp/internal/env"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/printer"
)

// names, in catalogue order. The
// symbol-to-Primitive bindings this produces are what DefinePrimitives
// installs into a fresh global environment.
var catalogue = []primEntry{
	{"quote", primQuote},
	{"cons", primCons},
	{"car", primCar},
	{"cdr", primCdr},
	{"setq", primSetq},
	{"setcar", primSetcar},
	{"while", primWhile},
	{"gensym", primGensym},
	{"+", primAdd},
	{"-", primSub},
	{"*", primMul},
	{"/", primDiv},
	{"%", primMod},
	{"<", primLt},
	{"<=", primLe},
	{">", primGt},
	{">=", primGe},
	{"=", primNumEq},
	{"eq", primEq},
	{"not", primNot},
	{"and", primAnd},
	{"or", primOr},
	{"abs", primAbs},
	{"if", primIf},
	{"define", primDefine},
	{"defun", primDefun},
	{"defmacro", primDefmacro},
	{"lambda", primLambda},
	{"macroexpand", primMacroexpand},
	{"print", primPrint},
	{"eval", primEval},
	{"list", primList},
}

// DefinePrimitives installs the full primitive/special-form catalogue of
// into globalEnv.
func DefinePrimitives(ev *Evaluator, globalEnv object.Ref) error {
	for _, entry := range catalogue {
		if err := AddPrimitive(ev, globalEnv, entry.name, entry.fn); err != nil {
			return err
		}
	}
	return nil
}

// AddPrimitive is the embedding-level extension point : it
// lets a host install an additional native callable under name.
func AddPrimitive(ev *Evaluator, globalEnv object.Ref, name string, fn PrimitiveFunc) error {
	idx := ev.addPrimitiveFunc(name, fn)

	frame, hSym, hPrim := ev.Reg.PushFrame2()
	_ = frame
	defer ev.Reg.PopFrame()

	sym, err := ev.intern(name)
	if err != nil {
		return err
	}
	*hSym = sym

	prim, err := ev.H.MakePrimitive(ev.Reg, idx)
	if err != nil {
		return err
	}
	*hPrim = prim

	return env.Define(ev.H, ev.Reg, globalEnv, *hSym, *hPrim)
}

// DefineConstants installs #t, #itr and #version. #t and #version are
// marked constant, so setq against them raises an error; #itr stays
// assignable, so user code may reset it with setq before a while loop.
func DefineConstants(ev *Evaluator, globalEnv object.Ref, version int) error {
	if err := AddConstant(ev, globalEnv, "#t", object.True); err != nil {
		return err
	}
	if err := AddConstantInt(ev, globalEnv, "#itr", 0); err != nil {
		return err
	}
	delete(ev.constants, "#itr")
	if err := AddConstantInt(ev, globalEnv, "#version", int64(version)); err != nil {
		return err
	}
	return nil
}

// AddConstant installs name bound to value in globalEnv and marks it
// constant.
func AddConstant(ev *Evaluator, globalEnv object.Ref, name string, value object.Ref) error {
	frame, hSym, hVal := ev.Reg.PushFrame2()
	_ = frame
	defer ev.Reg.PopFrame()

	sym, err := ev.intern(name)
	if err != nil {
		return err
	}
	*hSym = sym
	*hVal = value

	if err := env.Define(ev.H, ev.Reg, globalEnv, *hSym, *hVal); err != nil {
		return err
	}
	ev.constants[name] = true
	return nil
}

// AddConstantInt is AddConstant for an integer value.
func AddConstantInt(ev *Evaluator, globalEnv object.Ref, name string, n int64) error {
	frame, hVal := ev.Reg.PushFrame1()
	_ = frame
	defer ev.Reg.PopFrame()

	v, err := ev.H.MakeInt(ev.Reg, n)
	if err != nil {
		return err
	}
	*hVal = v
	return AddConstant(ev, globalEnv, name, *hVal)
}

// --- list helpers for fixed-arity special forms -------------------------

func arity(h interface{ Cdr(object.Ref) object.Ref }, args object.Ref, n int) bool {
	p := args
	for i := 0; i < n; i++ {
		if p == object.Nil {
			return false
		}
		p = h.Cdr(p)
	}
	return p == object.Nil
}

func nth(ev *Evaluator, args object.Ref, i int) object.Ref {
	p := args
	for ; i > 0; i-- {
		p = ev.H.Cdr(p)
	}
	return ev.H.Car(p)
}

func arityError(form string, want string) error {
	return newErr(KindArity, "malformed %s: expected %s argument(s)", form, want)
}

// --- quote ---------------------------------------------------------------

func primQuote(ev *Evaluator, _ object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("quote", "1")
	}
	return ev.H.Car(args), nil
}

// --- cons / car / cdr ------------------------------------------------------

func primCons(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("cons", "2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		return ev.H.Cons(ev.Reg, vals[0], vals[1])
	})
}

func primCar(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("car", "1")
	}
	v, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	if err := requireCell(ev.H, v, "car"); err != nil {
		return object.Nil, err
	}
	return ev.H.Car(v), nil
}

func primCdr(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("cdr", "1")
	}
	v, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	if err := requireCell(ev.H, v, "cdr"); err != nil {
		return object.Nil, err
	}
	return ev.H.Cdr(v), nil
}

// --- setq / setcar ---------------------------------------------------------

func primSetq(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("setq", "2")
	}
	sym := ev.H.Car(args)
	if err := requireSymbol(ev.H, sym, "setq"); err != nil {
		return object.Nil, err
	}
	if ev.constants[ev.H.SymbolName(sym)] {
		return object.Nil, newErr(KindBinding, "Cannot change constant: %s", ev.H.SymbolName(sym))
	}
	cell, ok := env.Lookup(ev.H, envRef, sym)
	if !ok {
		return object.Nil, newErr(KindBinding, "Undefined symbol: %s", ev.H.SymbolName(sym))
	}
	val, err := Eval(ev, envRef, nth(ev, args, 1))
	if err != nil {
		return object.Nil, err
	}
	env.SetValue(ev.H, cell, val)
	return val, nil
}

func primSetcar(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("setcar", "2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		if err := requireCell(ev.H, vals[0], "setcar"); err != nil {
			return object.Nil, err
		}
		ev.H.SetCar(vals[0], vals[1])
		return vals[1], nil
	})
}

// --- while -----------------------------------------------------------------

// primWhile implements the cooperative bounded loop : #itr is
// reset to 0 on entry and incremented after each body execution, nested
// while is rejected, the host's yield hook runs once per iteration, and
// the loop stops with an error once its body has run more than
// ev.TaskLimit times.
func primWhile(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 1 {
		return object.Nil, arityError("while", "at least 1")
	}
	if ev.whileActive {
		return object.Nil, newErr(KindDiscipline, "Nested loops are prohibited")
	}
	ev.whileActive = true
	defer func() { ev.whileActive = false }()

	cond := ev.H.Car(args)
	body := ev.H.Cdr(args)

	itrSym, err := ev.intern("#itr")
	if err != nil {
		return object.Nil, err
	}
	itrCell, ok := env.Lookup(ev.H, envRef, itrSym)
	if !ok {
		return object.Nil, newErr(KindInternal, "while: #itr is not bound")
	}
	zero, err := ev.H.MakeInt(ev.Reg, 0)
	if err != nil {
		return object.Nil, err
	}
	env.SetValue(ev.H, itrCell, zero)

	iterations := 0
	for {
		c, err := Eval(ev, envRef, cond)
		if err != nil {
			return object.Nil, err
		}
		if !truthy(c) {
			break
		}
		if ev.Cancel != nil && ev.Cancel() {
			return object.Nil, newErr(KindDiscipline, "while: cancelled")
		}
		if _, err := evalSequence(ev, envRef, body); err != nil {
			return object.Nil, err
		}

		iterations++
		if iterations > ev.TaskLimit {
			return object.Nil, newErr(KindDiscipline, "while: exceeded task iteration limit (%d)", ev.TaskLimit)
		}

		itrCell, ok = env.Lookup(ev.H, envRef, itrSym)
		if !ok {
			return object.Nil, newErr(KindInternal, "while: #itr is not bound")
		}
		cur, err := requireInt(ev.H, env.Value(ev.H, itrCell), "while")
		if err != nil {
			return object.Nil, err
		}
		next, err := ev.H.MakeInt(ev.Reg, cur+1)
		if err != nil {
			return object.Nil, err
		}
		itrCell, ok = env.Lookup(ev.H, envRef, itrSym)
		if !ok {
			return object.Nil, newErr(KindInternal, "while: #itr is not bound")
		}
		env.SetValue(ev.H, itrCell, next)

		if ev.Yield != nil {
			if err := ev.Yield(); err != nil {
				return object.Nil, err
			}
		}
	}
	return object.Nil, nil
}

// --- gensym ------------------------------------------------------------

func primGensym(ev *Evaluator, _ object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 0) {
		return object.Nil, arityError("gensym", "0")
	}
	ev.gensymCounter++
	name := fmt.Sprintf("G__%d", ev.gensymCounter)
	// Deliberately NOT interned: gensym's whole purpose is a symbol
	// guaranteed distinct from every other symbol of the same name
	//, so it is allocated raw and never added to the
	// global symbol list that intern() consults.
	return ev.H.MakeSymbolRaw(ev.Reg, name)
}

// --- arithmetic --------------------------------------------------------

func primAdd(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 1 {
		return object.Nil, arityError("+", "at least 1")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		var sum int64
		for _, v := range vals {
			n, err := requireInt(ev.H, v, "+")
			if err != nil {
				return object.Nil, err
			}
			sum += n
		}
		return ev.H.MakeInt(ev.Reg, sum)
	})
}

func primSub(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 1 {
		return object.Nil, arityError("-", "at least 1")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		first, err := requireInt(ev.H, vals[0], "-")
		if err != nil {
			return object.Nil, err
		}
		if len(vals) == 1 {
			return ev.H.MakeInt(ev.Reg, -first)
		}
		acc := first
		for _, v := range vals[1:] {
			n, err := requireInt(ev.H, v, "-")
			if err != nil {
				return object.Nil, err
			}
			acc -= n
		}
		return ev.H.MakeInt(ev.Reg, acc)
	})
}

func primMul(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("*", "at least 2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		acc, err := requireInt(ev.H, vals[0], "*")
		if err != nil {
			return object.Nil, err
		}
		for _, v := range vals[1:] {
			n, err := requireInt(ev.H, v, "*")
			if err != nil {
				return object.Nil, err
			}
			if n != 0 && (acc*n)/n != acc {
				return object.Nil, newErr(KindArithmetic, "*: overflow")
			}
			acc *= n
		}
		return ev.H.MakeInt(ev.Reg, acc)
	})
}

func primDiv(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("/", "at least 2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		acc, err := requireInt(ev.H, vals[0], "/")
		if err != nil {
			return object.Nil, err
		}
		if acc == 0 {
			return ev.H.MakeInt(ev.Reg, 0)
		}
		for _, v := range vals[1:] {
			n, err := requireInt(ev.H, v, "/")
			if err != nil {
				return object.Nil, err
			}
			if n == 0 {
				return object.Nil, newErr(KindArithmetic, "/: division by zero")
			}
			acc = int64(float64(acc) / float64(n))
		}
		return ev.H.MakeInt(ev.Reg, acc)
	})
}

func primMod(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("%", "2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		a, err := requireInt(ev.H, vals[0], "%")
		if err != nil {
			return object.Nil, err
		}
		b, err := requireInt(ev.H, vals[1], "%")
		if err != nil {
			return object.Nil, err
		}
		if b == 0 {
			return object.Nil, newErr(KindArithmetic, "%%: modulo by zero")
		}
		return ev.H.MakeInt(ev.Reg, a%b)
	})
}

// --- comparisons ---------------------------------------------------------

func compareOp(name string, cmp func(a, b int64) bool) PrimitiveFunc {
	return func(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
		if !arity(ev.H, args, 2) {
			return object.Nil, arityError(name, "2")
		}
		return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
			a, err := requireInt(ev.H, vals[0], name)
			if err != nil {
				return object.Nil, err
			}
			b, err := requireInt(ev.H, vals[1], name)
			if err != nil {
				return object.Nil, err
			}
			return boolRef(cmp(a, b)), nil
		})
	}
}

var (
	primLt    = compareOp("<", func(a, b int64) bool { return a < b })
	primLe    = compareOp("<=", func(a, b int64) bool { return a <= b })
	primGt    = compareOp(">", func(a, b int64) bool { return a > b })
	primGe    = compareOp(">=", func(a, b int64) bool { return a >= b })
	primNumEq = compareOp("=", func(a, b int64) bool { return a == b })
)

func primEq(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("eq", "2")
	}
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		return boolRef(vals[0] == vals[1]), nil
	})
}

func primNot(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("not", "1")
	}
	v, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	return boolRef(!isTruthyValue(ev, v)), nil
}

// isTruthyValue treats Nil as false and Int 0 as false, per the
// `not`/`and`/`or` contract; every other value (including True, Cells,
// Functions...) is truthy.
func isTruthyValue(ev *Evaluator, v object.Ref) bool {
	if v == object.Nil {
		return false
	}
	if !v.IsSingleton() && ev.H.Tag(v) == object.TagInt && ev.H.Int(v) == 0 {
		return false
	}
	return true
}

func primAnd(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("and", "at least 2")
	}
	result := object.True
	for p := args; p != object.Nil; p = ev.H.Cdr(p) {
		v, err := Eval(ev, envRef, ev.H.Car(p))
		if err != nil {
			return object.Nil, err
		}
		if !isTruthyValue(ev, v) {
			return object.Nil, nil
		}
		result = v
	}
	return result, nil
}

func primOr(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("or", "at least 2")
	}
	for p := args; p != object.Nil; p = ev.H.Cdr(p) {
		v, err := Eval(ev, envRef, ev.H.Car(p))
		if err != nil {
			return object.Nil, err
		}
		if isTruthyValue(ev, v) {
			return v, nil
		}
	}
	return object.Nil, nil
}

func primAbs(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("abs", "1")
	}
	v, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	n, err := requireInt(ev.H, v, "abs")
	if err != nil {
		return object.Nil, err
	}
	if n < 0 {
		n = -n
	}
	return ev.H.MakeInt(ev.Reg, n)
}

// --- control ---------------------------------------------------------------

func primIf(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("if", "at least 2")
	}
	cond, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	rest := ev.H.Cdr(args)
	then := ev.H.Car(rest)
	elseForms := ev.H.Cdr(rest)
	if truthy(cond) {
		return Eval(ev, envRef, then)
	}
	return evalSequence(ev, envRef, elseForms)
}

// --- define / defun / defmacro / lambda -----------------------------------

func primDefine(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 2) {
		return object.Nil, arityError("define", "2")
	}
	sym := ev.H.Car(args)
	if err := requireSymbol(ev.H, sym, "define"); err != nil {
		return object.Nil, err
	}
	if _, ok := env.LookupLocal(ev.H, envRef, sym); ok {
		return object.Nil, newErr(KindBinding, "Already defined: %s", ev.H.SymbolName(sym))
	}
	val, err := Eval(ev, envRef, nth(ev, args, 1))
	if err != nil {
		return object.Nil, err
	}
	if err := env.Define(ev.H, ev.Reg, envRef, sym, val); err != nil {
		return object.Nil, err
	}
	return val, nil
}

func primDefun(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("defun", "at least 2")
	}
	name := ev.H.Car(args)
	if err := requireSymbol(ev.H, name, "defun"); err != nil {
		return object.Nil, err
	}
	params := nth(ev, args, 1)
	body := ev.H.Cdr(ev.H.Cdr(args))
	return defineClosure(ev, envRef, name, params, body, object.TagFunction)
}

func primDefmacro(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 2 {
		return object.Nil, arityError("defmacro", "at least 2")
	}
	name := ev.H.Car(args)
	if err := requireSymbol(ev.H, name, "defmacro"); err != nil {
		return object.Nil, err
	}
	params := nth(ev, args, 1)
	body := ev.H.Cdr(ev.H.Cdr(args))
	return defineClosure(ev, envRef, name, params, body, object.TagMacro)
}

func defineClosure(ev *Evaluator, envRef, name, params, body object.Ref, tag object.Tag) (object.Ref, error) {
	if _, ok := env.LookupLocal(ev.H, envRef, name); ok {
		return object.Nil, newErr(KindBinding, "Already defined: %s", ev.H.SymbolName(name))
	}
	frame, hName, hParams, hBody, hClosure := ev.Reg.PushFrame4()
	_ = frame
	defer ev.Reg.PopFrame()
	*hName, *hParams, *hBody = name, params, body

	var closure object.Ref
	var err error
	if tag == object.TagMacro {
		closure, err = ev.H.MakeMacro(ev.Reg, *hParams, *hBody, envRef)
	} else {
		closure, err = ev.H.MakeFunction(ev.Reg, *hParams, *hBody, envRef)
	}
	if err != nil {
		return object.Nil, err
	}
	*hClosure = closure

	if err := env.Define(ev.H, ev.Reg, envRef, *hName, *hClosure); err != nil {
		return object.Nil, err
	}
	return *hClosure, nil
}

func primLambda(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if listLen(ev.H, args) < 1 {
		return object.Nil, arityError("lambda", "at least 1")
	}
	params := ev.H.Car(args)
	body := ev.H.Cdr(args)
	return ev.H.MakeFunction(ev.Reg, params, body, envRef)
}

func primMacroexpand(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("macroexpand", "1")
	}
	form := ev.H.Car(args)
	if form.IsSingleton() || ev.H.Tag(form) != object.TagCell {
		return form, nil
	}
	head := ev.H.Car(form)
	if head.IsSingleton() || ev.H.Tag(head) != object.TagSymbol {
		return form, nil
	}
	cell, ok := env.Lookup(ev.H, envRef, head)
	if !ok {
		return form, nil
	}
	callee := env.Value(ev.H, cell)
	if callee.IsSingleton() || ev.H.Tag(callee) != object.TagMacro {
		return form, nil
	}
	return applyClosure(ev, envRef, callee, ev.H.Cdr(form), false)
}

// --- print / eval / list --------------------------------------------------

func primPrint(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	return withEvalArgs(ev, envRef, args, func(vals []object.Ref) (object.Ref, error) {
		last := object.Ref(object.Nil)
		for _, v := range vals {
			if err := printer.Fprint(ev.Out, ev.H, v); err != nil {
				return object.Nil, err
			}
			if _, err := fmt.Fprintln(ev.Out); err != nil {
				return object.Nil, err
			}
			last = v
		}
		return last, nil
	})
}

func primEval(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	if !arity(ev.H, args, 1) {
		return object.Nil, arityError("eval", "1")
	}
	v, err := Eval(ev, envRef, ev.H.Car(args))
	if err != nil {
		return object.Nil, err
	}
	return Eval(ev, envRef, v)
}

func primList(ev *Evaluator, envRef object.Ref, args object.Ref) (object.Ref, error) {
	return evalArgsList(ev, envRef, args)
}
