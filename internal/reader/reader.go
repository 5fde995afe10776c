// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package reader implements a hand-written recursive-descent parser: a
// single-pass byte lexer feeding a grammar of integers, symbols, quoted
// forms and (possibly dotted) lists, allocating directly onto the heap
// as it goes.
package reader

import (
	"fmt"
	"io"

	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// ParseError reports a reader failure together with the byte offset into
// the source text at which it occurred, matching the original
// interpreter's error_index() contract.
type ParseError struct {
	Msg    string
	Offset int
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s (at byte %d)", e.Msg, e.Offset) }

func parseErr(offset int, format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Offset: offset}
}

// Reader reads successive top-level expressions from a single source
// buffer, allocating cons cells and symbols on h as it parses.
type Reader struct {
	h   *heap.Heap
	reg *root.Registry
	src []byte
	pos int
}

// New creates a Reader over src. reg is the registry the reader pushes
// its own working frames onto while it builds multi-cell structures.
func New(h *heap.Heap, reg *root.Registry, src []byte) *Reader {
	return &Reader{h: h, reg: reg, src: src}
}

// Pos returns the reader's current byte offset into its source, used by
// EvalSource to report error_index() even when the failure came from
// evaluation rather than parsing (the offset of the form being evaluated).
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) peek() (byte, bool) {
	if r.pos >= len(r.src) {
		return 0, false
	}
	return r.src[r.pos], true
}

func (r *Reader) next() (byte, bool) {
	c, ok := r.peek()
	if ok {
		r.pos++
	}
	return c, ok
}

func (r *Reader) unread() {
	if r.pos > 0 {
		r.pos--
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSymbolStart(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return true
	}
	switch c {
	case '~', '!', '@', '#', '$', '%', '^', '&', '*', '-', '_', '=', '+', ':', '/', '?', '<', '>':
		return true
	}
	return false
}

func isSymbolCont(c byte) bool {
	return isSymbolStart(c) || isDigit(c)
}

// skipSpaceAndComments advances past whitespace and ;-to-end-of-line
// comments.
func (r *Reader) skipSpaceAndComments() {
	for {
		c, ok := r.peek()
		if !ok {
			return
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			r.pos++
			continue
		case ';':
			for {
				c, ok := r.next()
				if !ok || c == '\n' {
					return
				}
				if c == '\r' {
					if c2, ok2 := r.peek(); ok2 && c2 == '\n' {
						r.pos++
					}
					return
				}
			}
		default:
			return
		}
	}
}

// Read returns the next top-level expression, or io.EOF once the source is
// exhausted. A non-nil, non-io.EOF error is a ParseError.
func (r *Reader) Read() (object.Ref, error) {
	r.skipSpaceAndComments()
	if _, ok := r.peek(); !ok {
		return object.Nil, io.EOF
	}
	return r.readExpr()
}

// readExpr parses a single expr per the grammar. It never returns Dot or
// Cparen to a caller outside readList — seeing either here means the
// program used one where an expression was expected.
func (r *Reader) readExpr() (object.Ref, error) {
	r.skipSpaceAndComments()
	start := r.pos
	c, ok := r.next()
	if !ok {
		return object.Nil, io.EOF
	}
	switch {
	case c == '(':
		return r.readList()
	case c == ')':
		return object.Nil, parseErr(start, "Stray close parenthesis")
	case c == '\'':
		return r.readQuote()
	case c == '.':
		return object.Nil, parseErr(start, "Stray dot")
	case c == '-':
		if nc, ok := r.peek(); ok && isDigit(nc) {
			r.unread()
			return r.readInt(start, -1)
		}
		r.unread()
		return r.readSymbol(start)
	case isDigit(c):
		r.unread()
		return r.readInt(start, 1)
	case isSymbolStart(c):
		r.unread()
		return r.readSymbol(start)
	default:
		return object.Nil, parseErr(start, "Don't know how to handle %q", c)
	}
}

func (r *Reader) readInt(start int, sign int64) (object.Ref, error) {
	if sign < 0 {
		r.pos++ // consume the '-'
	}
	var v int64
	for {
		c, ok := r.peek()
		if !ok || !isDigit(c) {
			break
		}
		v = v*10 + int64(c-'0')
		r.pos++
	}
	return r.h.MakeInt(r.reg, sign*v)
}

func (r *Reader) readSymbol(start int) (object.Ref, error) {
	from := r.pos
	r.pos++ // the start byte was already validated by the caller
	for {
		c, ok := r.peek()
		if !ok || !isSymbolCont(c) {
			break
		}
		r.pos++
	}
	name := string(r.src[from:r.pos])
	if len(name) > object.SymbolMaxLen {
		return object.Nil, parseErr(start, "Symbol name too long")
	}
	return r.Intern(name)
}

// readQuote parses "'" expr into (quote expr).
func (r *Reader) readQuote() (object.Ref, error) {
	frame, hExpr, hSym, hCell := r.reg.PushFrame3()
	defer r.reg.PopFrame()
	_ = frame

	e, err := r.readExpr()
	if err != nil {
		return object.Nil, err
	}
	*hExpr = e

	sym, err := r.Intern("quote")
	if err != nil {
		return object.Nil, err
	}
	*hSym = sym

	tail, err := r.h.Cons(r.reg, *hExpr, object.Nil)
	if err != nil {
		return object.Nil, err
	}
	*hCell = tail

	return r.h.Cons(r.reg, *hSym, *hCell)
}

// readList parses the remainder of a list after its opening '(' has been
// consumed, implementing:
//
//	list ::= ')' | expr ')' | expr '.' expr ')' | expr list
func (r *Reader) readList() (object.Ref, error) {
	r.skipSpaceAndComments()
	if c, ok := r.peek(); ok && c == ')' {
		r.pos++
		return object.Nil, nil
	}
	if _, ok := r.peek(); !ok {
		return object.Nil, parseErr(r.pos, "Unclosed parenthesis")
	}

	frame, hHead, hTail := r.reg.PushFrame2()
	defer r.reg.PopFrame()
	_ = frame

	head, err := r.readExpr()
	if err != nil {
		return object.Nil, err
	}
	*hHead = head

	r.skipSpaceAndComments()
	if c, ok := r.peek(); ok && c == '.' {
		// '.' is never a symbol constituent (isSymbolStart excludes it), so
		// a '.' here always is the dotted-pair separator, whether or not
		// whitespace surrounds it.
		r.pos++
		tail, err := r.readExpr()
		if err != nil {
			return object.Nil, err
		}
		*hTail = tail
		r.skipSpaceAndComments()
		c, ok := r.next()
		if !ok || c != ')' {
			return object.Nil, parseErr(r.pos, "Closed parenthesis expected after dot")
		}
		return r.h.Cons(r.reg, *hHead, *hTail)
	}

	rest, err := r.readList()
	if err != nil {
		return object.Nil, err
	}
	*hTail = rest
	return r.h.Cons(r.reg, *hHead, *hTail)
}

// Intern returns the canonical Symbol for name, allocating and
// registering a new one in the heap's symbol list on first use. Symbols
// are compared by Ref identity throughout the evaluator.
func (r *Reader) Intern(name string) (object.Ref, error) {
	return Intern(r.h, r.reg, name)
}

// Intern is the free-function form used by packages other than reader
// (the evaluator's while primitive and its constant/primitive installers)
// that need to mint or look up a symbol without a live Reader.
func Intern(h *heap.Heap, reg *root.Registry, name string) (object.Ref, error) {
	for p := h.Symbols(); p != object.Nil; p = h.Cdr(p) {
		sym := h.Car(p)
		if h.SymbolName(sym) == name {
			return sym, nil
		}
	}
	frame, hSym, hCell := reg.PushFrame2()
	defer reg.PopFrame()
	_ = frame

	sym, err := h.MakeSymbolRaw(reg, name)
	if err != nil {
		return object.Nil, err
	}
	*hSym = sym

	cell, err := h.Cons(reg, *hSym, h.Symbols())
	if err != nil {
		return object.Nil, err
	}
	*hCell = cell
	h.SetSymbols(*hCell)
	return *hSym, nil
}
