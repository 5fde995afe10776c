// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package lisp

import (
	"strings"
	"testing"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	it, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(it.Close)
	return it
}

// TestScenarios covers six concrete end-to-end scenarios.
func TestScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"S1_arithmetic", "(+ 1 2 3)", "6"},
		{"S2_factorial", "(define fact (lambda (n) (if (= n 0) 1 (* n (fact (- n 1)))))) (fact 5)", "120"},
		{"S3_defun_predicate", "(defun odd (n) (= 1 (% n 2))) (list (odd 1) (odd 2))", "(#t ())"},
		{"S5_macro", "(defmacro unless (c e) (list 'if c () e)) (unless () 42)", "42"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			it := newTestInterpreter(t)
			got, err := it.EvalSource(c.src)
			if err != nil {
				t.Fatalf("EvalSource(%q): %v", c.src, err)
			}
			if got != c.want {
				t.Errorf("EvalSource(%q) = %q, want %q", c.src, got, c.want)
			}
		})
	}
}

// TestS4WhileLoop checks that while prints 0,1,2 in order and leaves #itr
// at 3 afterward.
func TestS4WhileLoop(t *testing.T) {
	it := newTestInterpreter(t)
	var out strings.Builder
	if err := it.SetPrinters(&out, &out); err != nil {
		t.Fatalf("SetPrinters: %v", err)
	}

	if _, err := it.EvalSource("(setq #itr 0) (while (< #itr 3) (print #itr))"); err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got, want := out.String(), "0\n1\n2\n"; got != want {
		t.Errorf("printed output = %q, want %q", got, want)
	}

	got, err := it.EvalSource("#itr")
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got != "3" {
		t.Errorf("#itr after loop = %q, want 3", got)
	}
}

// TestS6ErrorRecovery checks that a division-by-zero error in one
// EvalSource call leaves the interpreter usable for the next one.
func TestS6ErrorRecovery(t *testing.T) {
	it := newTestInterpreter(t)
	if _, err := it.EvalSource("(/ 1 0)"); err == nil {
		t.Fatal("expected a division-by-zero error")
	}
	got, err := it.EvalSource("(+ 1 2)")
	if err != nil {
		t.Fatalf("EvalSource after error: %v", err)
	}
	if got != "3" {
		t.Errorf("EvalSource after error = %q, want 3", got)
	}
}

// TestEnvironmentHygiene checks that a closure captures the
// binding cell, not a copy of the value, so a later setq on the captured
// variable is visible inside the closure.
func TestEnvironmentHygiene(t *testing.T) {
	it := newTestInterpreter(t)
	got, err := it.EvalSource(`
		(define x 1)
		(define add1 (lambda (y) (+ x y)))
		(setq x 2)
		(add1 10)
	`)
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got != "12" {
		t.Errorf("got %q, want 12", got)
	}
}

// TestSymbolIdentity checks symbol identity under eq and gensym.
func TestSymbolIdentity(t *testing.T) {
	it := newTestInterpreter(t)
	got, err := it.EvalSource("(eq 'foo 'foo)")
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got != "#t" {
		t.Errorf("(eq 'foo 'foo) = %q, want #t", got)
	}

	got, err = it.EvalSource("(eq (gensym) (gensym))")
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got != "()" {
		t.Errorf("(eq (gensym) (gensym)) = %q, want ()", got)
	}
}

// TestConstantImmutability checks that constants reject setq.
func TestConstantImmutability(t *testing.T) {
	it := newTestInterpreter(t)
	if _, err := it.EvalSource("(setq #t ())"); err == nil {
		t.Error("expected an error assigning to #t")
	}
	if _, err := it.EvalSource("(setq #version 0)"); err == nil {
		t.Error("expected an error assigning to #version")
	}
}

// TestMacroVsFunction checks that a macro receives
// unevaluated arguments and its expansion runs in the caller's
// environment.
func TestMacroVsFunction(t *testing.T) {
	it := newTestInterpreter(t)
	got, err := it.EvalSource(`
		(defmacro my-if (c t e) (list 'if c t e))
		(define y 5)
		(my-if (= y 5) 'yes 'no)
	`)
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if got != "yes" {
		t.Errorf("got %q, want yes", got)
	}
}

// TestErrorLocalization checks that a malformed program
// fails the whole EvalSource call, reports a non-negative byte index, and
// the interpreter still accepts the next call.
func TestErrorLocalization(t *testing.T) {
	it := newTestInterpreter(t)
	_, err := it.EvalSource("(+ 1 2")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var lerr *Error
	if e, ok := err.(*Error); ok {
		lerr = e
	}
	if lerr == nil {
		t.Fatalf("error %v is not *lisp.Error", err)
	}
	if lerr.Offset < 0 {
		t.Errorf("error offset = %d, want >= 0", lerr.Offset)
	}

	got, err := it.EvalSource("(+ 1 2)")
	if err != nil {
		t.Fatalf("EvalSource after parse error: %v", err)
	}
	if got != "3" {
		t.Errorf("got %q, want 3", got)
	}
}

// TestRoundTrip checks that printing a read value and
// re-reading it yields a structurally equal result.
func TestRoundTrip(t *testing.T) {
	it := newTestInterpreter(t)
	src := "(quote (1 2 (3 . 4) foo))"
	first, err := it.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	second, err := it.EvalSource("'" + first)
	if err != nil {
		t.Fatalf("EvalSource on printed form: %v", err)
	}
	if first != second {
		t.Errorf("round trip mismatch: %q vs %q", first, second)
	}
}

// TestNestedWhileProhibited checks that an inner while while an
// outer is active is a discipline error.
func TestNestedWhileProhibited(t *testing.T) {
	it := newTestInterpreter(t)
	_, err := it.EvalSource(`
		(setq #itr 0)
		(while (< #itr 1)
			(while (< #itr 1) (setq #itr (+ #itr 1))))
	`)
	if err == nil {
		t.Fatal("expected Nested loops are prohibited error")
	}
}

// TestAlwaysGCSameOutput checks end-to-end that enabling
// always_gc must not change a program's observable output.
func TestAlwaysGCSameOutput(t *testing.T) {
	src := `
		(defun fib (n) (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2)))))
		(fib 12)
	`
	normal, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer normal.Close()
	want, err := normal.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}

	gc, err := New(Options{AlwaysGC: true, HeapBytes: 4096})
	if err != nil {
		t.Fatalf("New(AlwaysGC): %v", err)
	}
	defer gc.Close()
	got, err := gc.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource(AlwaysGC): %v", err)
	}
	if got != want {
		t.Errorf("AlwaysGC changed output: got %q, want %q", got, want)
	}
}

// TestHostPrimitive checks that a host-installed primitive's callback body
// actually runs and its return value reaches the caller, not just that
// registration succeeds.
func TestHostPrimitive(t *testing.T) {
	it := newTestInterpreter(t)
	err := it.AddPrimitive("host-add", func(it *Interpreter, args []Value) (Value, error) {
		var sum int64
		for _, a := range args {
			sum += it.h.Int(a.ref)
		}
		ref, err := it.h.MakeInt(it.reg, sum)
		if err != nil {
			return Value{}, err
		}
		return Value{h: it.h, ref: ref}, nil
	})
	if err != nil {
		t.Fatalf("AddPrimitive: %v", err)
	}

	got, err := it.EvalSource("(host-add 2 3 4)")
	if err != nil {
		t.Fatalf("EvalSource(host-add): %v", err)
	}
	if got != "9" {
		t.Errorf("EvalSource(host-add) = %q, want 9", got)
	}
}
