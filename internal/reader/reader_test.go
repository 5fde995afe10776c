// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reader

import (
	"io"
	"testing"

	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/printer"
	"github.com/uniot-io/go-minilisp/internal/root"
)

func newTestReader(t *testing.T, src string) (*Reader, *heap.Heap) {
	t.Helper()
	h, err := heap.New(heap.Options{Bytes: heap.MinBytes})
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	t.Cleanup(h.Close)
	reg := &root.Registry{}
	return New(h, reg, []byte(src)), h
}

func TestReadAtoms(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-42", "-42"},
		{"foo", "foo"},
		{"()", "()"},
		{"(1 2 3)", "(1 2 3)"},
		{"(1 . 2)", "(1 . 2)"},
		{"'x", "(quote x)"},
		{"; comment\n42", "42"},
		{"(a . b)", "(a . b)"},
		{"(a .b)", "(a . b)"},
	}
	for _, c := range cases {
		r, h := newTestReader(t, c.src)
		v, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%q): %v", c.src, err)
		}
		if got := printer.Sprint(h, v); got != c.want {
			t.Errorf("Read(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestReadMultipleForms(t *testing.T) {
	r, h := newTestReader(t, "1 2 3")
	var got []string
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, printer.Sprint(h, v))
	}
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v forms, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("form %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadErrors(t *testing.T) {
	cases := []string{
		"(1 2",
		"(1 . 2 3)",
		")",
		". 1",
		".foo",
		"\\",
	}
	for _, src := range cases {
		r, _ := newTestReader(t, src)
		_, err := r.Read()
		if err == nil || err == io.EOF {
			t.Errorf("Read(%q): expected error, got %v", src, err)
			continue
		}
		var perr *ParseError
		if pe, ok := err.(*ParseError); ok {
			perr = pe
		}
		if perr == nil {
			t.Errorf("Read(%q): error %v is not a *ParseError", src, err)
		}
	}
}

func TestSymbolTooLong(t *testing.T) {
	long := make([]byte, object.SymbolMaxLen+1)
	for i := range long {
		long[i] = 'a'
	}
	r, _ := newTestReader(t, string(long))
	_, err := r.Read()
	if err == nil {
		t.Fatal("expected Symbol name too long error")
	}
}

func TestInternIsIdempotent(t *testing.T) {
	h, err := heap.New(heap.Options{Bytes: heap.MinBytes})
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	defer h.Close()
	reg := &root.Registry{}

	a, err := Intern(h, reg, "foo")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	b, err := Intern(h, reg, "foo")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if a != b {
		t.Errorf("Intern(\"foo\") returned distinct refs: %v vs %v", a, b)
	}
	c, err := Intern(h, reg, "bar")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if a == c {
		t.Errorf("Intern(\"foo\") and Intern(\"bar\") collided")
	}
}
