// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package object defines the tagged-value layout shared by the heap,
// garbage collector, reader, printer and evaluator: the small set of value
// tags, the fixed object header shape, and the four singleton values that
// live outside the managed heap.
package object

import "fmt"

// Tag identifies the runtime representation of a heap-allocated value.
// It is the first byte of every object's header.
type Tag uint8

const (
	TagInt Tag = iota
	TagCell
	TagSymbol
	TagPrimitive
	TagFunction
	TagMacro
	TagEnv
	// TagMoved marks a tombstone left by the GC at an object's old address.
	// No subsystem other than the collector ever observes this tag.
	TagMoved
)

func (t Tag) String() string {
	switch t {
	case TagInt:
		return "int"
	case TagCell:
		return "cell"
	case TagSymbol:
		return "symbol"
	case TagPrimitive:
		return "primitive"
	case TagFunction:
		return "function"
	case TagMacro:
		return "macro"
	case TagEnv:
		return "env"
	case TagMoved:
		return "moved"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Ref is a handle to a value: either an offset into the heap's active
// semispace, or one of the four singleton sentinels below. A Ref is
// relative to whichever semispace is currently active rather than an
// absolute process address.
type Ref uint32

// Singleton values. These sit far above any real arena offset (see
// MaxHeapBytes) so that a Ref can be tested for "is this a singleton?" with
// a single comparison, and so the GC's forward function recognizes them as
// "not in from-space" without special-casing each one.
const (
	Nil Ref = 0xFFFFFFFF - iota
	True
	Dot
	Cparen
)

// MaxHeapBytes is the largest arena size this representation supports: Refs
// at or above it are reserved for singletons.
const MaxHeapBytes = uint32(Cparen)

// IsSingleton reports whether r is one of Nil, True, Dot or Cparen.
func (r Ref) IsSingleton() bool { return r >= Cparen }

func (r Ref) String() string {
	switch r {
	case Nil:
		return "()"
	case True:
		return "#t"
	case Dot:
		return "."
	case Cparen:
		return ")"
	default:
		return fmt.Sprintf("@%#x", uint32(r))
	}
}

// SymbolMaxLen is the longest name, in bytes, a symbol may have
// (original_source/src/libminilisp.h: SYMBOL_MAX_LEN).
const SymbolMaxLen = 200

// Align is the pointer alignment every object's total size is rounded up
// to, matching the original arena's void*-based alignment.
const Align = 8

// HeaderSize is the number of bytes occupied by every object's header: a
// one-byte tag followed by padding and a four-byte total-size field.
const HeaderSize = 8

// Payload layout per tag: the Cell, Env and Func constants count Ref
// fields (4 bytes each); PrimitiveWidth is a Primitive's payload in bytes.
const (
	CellFields     = 2 // car, cdr
	EnvFields      = 2 // vars, up
	FuncFields     = 3 // params, body, env
	PrimitiveWidth = 4 // index into the interpreter's native-function table
)
