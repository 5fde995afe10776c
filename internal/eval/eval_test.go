// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package eval

import (
	"io"
	"testing"

	"github.com/uniot-io/go-minilisp/internal/env"
	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/printer"
	"github.com/uniot-io/go-minilisp/internal/reader"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// testEnv bundles a fresh heap, evaluator and global environment wired up
// the way lisp.Interpreter.init does, for use directly against internal/eval
// without pulling in the root lisp package.
type testEnv struct {
	t      *testing.T
	h      *heap.Heap
	reg    *root.Registry
	ev     *Evaluator
	global object.Ref
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	h, err := heap.New(heap.Options{Bytes: 1 << 16})
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	t.Cleanup(h.Close)
	reg := &root.Registry{}
	ev := New(h, reg)
	ev.Out = io.Discard
	ev.Err = io.Discard

	frame, hGlobal := reg.PushFrame1()
	_ = frame
	defer reg.PopFrame()

	global, err := env.New(h, reg, object.Nil)
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	*hGlobal = global
	if err := DefineConstants(ev, *hGlobal, 100); err != nil {
		t.Fatalf("DefineConstants: %v", err)
	}
	if err := DefinePrimitives(ev, *hGlobal); err != nil {
		t.Fatalf("DefinePrimitives: %v", err)
	}

	return &testEnv{t: t, h: h, reg: reg, ev: ev, global: *hGlobal}
}

// run reads and evaluates every form in src in sequence, returning the
// printed representation of the last form's value.
func (te *testEnv) run(src string) (string, error) {
	te.t.Helper()
	rd := reader.New(te.h, te.reg, []byte(src))
	result := object.Nil
	for {
		frame, hForm := te.reg.PushFrame1()
		_ = frame
		form, err := rd.Read()
		if err == io.EOF {
			te.reg.PopFrame()
			break
		}
		if err != nil {
			te.reg.PopFrame()
			return "", err
		}
		*hForm = form
		v, err := Eval(te.ev, te.global, *hForm)
		te.reg.PopFrame()
		if err != nil {
			return "", err
		}
		result = v
	}
	return printer.Sprint(te.h, result), nil
}

func TestArithmeticPrimitives(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"(+ 1 2 3)", "6"},
		{"(- 10 1 2)", "7"},
		{"(- 5)", "-5"},
		{"(* 2 3 4)", "24"},
		{"(/ 10 3)", "3"},
		{"(/ 0 5)", "0"},
		{"(% 10 3)", "1"},
		{"(abs -5)", "5"},
		{"(abs 5)", "5"},
	}
	for _, c := range cases {
		te := newTestEnv(t)
		got, err := te.run(c.src)
		if err != nil {
			t.Fatalf("run(%q): %v", c.src, err)
		}
		if got != c.want {
			t.Errorf("run(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestMulOverflow(t *testing.T) {
	te := newTestEnv(t)
	_, err := te.run("(* 999999999999 999999999999)")
	if err == nil {
		t.Fatal("expected an overflow error")
	}
}

func TestDivisionByZero(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.run("(/ 1 0)"); err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}

func TestModByZero(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.run("(% 1 0)"); err == nil {
		t.Fatal("expected a modulo-by-zero error")
	}
}

func TestComparisons(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"(< 1 2)", "#t"},
		{"(< 2 1)", "()"},
		{"(<= 2 2)", "#t"},
		{"(> 3 2)", "#t"},
		{"(>= 2 2)", "#t"},
		{"(= 2 2)", "#t"},
		{"(= 2 3)", "()"},
	}
	for _, c := range cases {
		te := newTestEnv(t)
		got, err := te.run(c.src)
		if err != nil {
			t.Fatalf("run(%q): %v", c.src, err)
		}
		if got != c.want {
			t.Errorf("run(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestEqIsIdentity(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run("(eq 'a 'a)")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "#t" {
		t.Errorf("(eq 'a 'a) = %q, want #t", got)
	}
	got, err = te.run("(eq (cons 1 2) (cons 1 2))")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "()" {
		t.Errorf("(eq (cons 1 2) (cons 1 2)) = %q, want ()", got)
	}
}

func TestNotAndOr(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"(not ())", "#t"},
		{"(not 0)", "#t"},
		{"(not 1)", "()"},
		{"(and 1 2 3)", "3"},
		{"(and 1 () 3)", "()"},
		{"(or () () 3)", "3"},
		{"(or () ())", "()"},
	}
	for _, c := range cases {
		te := newTestEnv(t)
		got, err := te.run(c.src)
		if err != nil {
			t.Fatalf("run(%q): %v", c.src, err)
		}
		if got != c.want {
			t.Errorf("run(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestGensymUniqueness(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run("(eq (gensym) (gensym))")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "()" {
		t.Errorf("(eq (gensym) (gensym)) = %q, want ()", got)
	}
}

func TestWhileTracksItrAndRejectsNesting(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run("(setq #itr 0) (while (< #itr 3) (setq #itr (+ #itr 1))) #itr")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The body's setq and while's own per-iteration increment both advance
	// #itr: 0 -> 1 -> 2, then 2 -> 3 -> 4, and (< 4 3) ends the loop.
	if got != "4" {
		t.Errorf("#itr after loop = %q, want 4", got)
	}

	te2 := newTestEnv(t)
	_, err = te2.run("(setq #itr 0) (while (< #itr 1) (while (< #itr 1) (setq #itr (+ #itr 1))))")
	if err == nil {
		t.Fatal("expected a nested-while discipline error")
	}
}

func TestWhileTaskLimit(t *testing.T) {
	te := newTestEnv(t)
	te.ev.TaskLimit = 5
	_, err := te.run("(setq #itr 0) (while 1 (setq #itr (+ #itr 1)))")
	if err == nil {
		t.Fatal("expected a task-limit discipline error")
	}
}

func TestDefineRejectsRedefinition(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.run("(define x 1) (define x 2)"); err == nil {
		t.Fatal("expected an Already defined error")
	}
}

func TestDefunAndDefmacroRejectRedefinition(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.run("(defun f (x) x) (defun f (x) x)"); err == nil {
		t.Fatal("expected an Already defined error for defun")
	}
	te2 := newTestEnv(t)
	if _, err := te2.run("(defmacro m (x) x) (defmacro m (x) x)"); err == nil {
		t.Fatal("expected an Already defined error for defmacro")
	}
}

func TestLambdaClosureCapture(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run(`
		(define make-adder (lambda (n) (lambda (x) (+ x n))))
		(define add5 (make-adder 5))
		(add5 10)
	`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "15" {
		t.Errorf("got %q, want 15", got)
	}
}

func TestMacroexpandDoesNotEvaluateExpansion(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run(`
		(defmacro double (x) (list '+ x x))
		(macroexpand (double 21))
	`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "(+ 21 21)" {
		t.Errorf("macroexpand result = %q, want (+ 21 21)", got)
	}
}

func TestSetqUndefinedSymbolErrors(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.run("(setq undefined-var 1)"); err == nil {
		t.Fatal("expected an Undefined symbol error")
	}
}

func TestListBuildsProperList(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run("(list 1 2 3)")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "(1 2 3)" {
		t.Errorf("got %q, want (1 2 3)", got)
	}
}

func TestEvalPrimitiveDoubleEvaluates(t *testing.T) {
	te := newTestEnv(t)
	got, err := te.run("(define x '(+ 1 2)) (eval x)")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "3" {
		t.Errorf("got %q, want 3", got)
	}
}
