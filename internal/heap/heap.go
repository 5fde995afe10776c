// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package heap implements the single contiguous-arena allocator and the
// Cheney two-space copying collector. Every live value is addressed by an
// object.Ref — an offset into whichever semispace is presently active —
// never by a Go pointer, so that a GC move is nothing more than copying
// bytes and rewriting offsets.
package heap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/logex"

	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// DefaultBytes is the arena size used when a caller does not specify one
// ("default 4000 bytes").
const DefaultBytes = 4000

// MinBytes is the smallest arena size this package accepts.
const MinBytes = 2000

// ErrOutOfMemory is returned when an allocation still does not fit after a
// full collection.
var ErrOutOfMemory = errors.New("heap: out of memory")

// Options configures a new Heap.
type Options struct {
	// Bytes is the capacity of each semispace. Defaults to DefaultBytes.
	Bytes int
	// AlwaysGC forces a full collection on every allocation, to surface
	// latent root-registration bugs.
	AlwaysGC bool
	// DebugGC emits a per-cycle summary through Logger.
	DebugGC bool
	// Logger receives the DebugGC summaries. A discarding logger is used
	// if nil.
	Logger *logex.Logger
}

// Stats is a snapshot of the heap's resource usage, the Go equivalent of
// the original's memcheck.h allocation counters.
type Stats struct {
	Cycles         int    // number of completed GC cycles
	BytesAllocated uint64 // cumulative bytes bump-allocated over the heap's lifetime
	InUse          int    // bytes currently in use in the active semispace
	Capacity       int    // capacity of one semispace
}

// Heap owns the two semispaces and the bump allocator over the active one.
type Heap struct {
	opt Options

	active arena
	other  arena
	free   uint32

	symbols object.Ref // head of the interned symbol list; forwarded every GC cycle like any other root

	gcRunning      bool
	cycles         int
	bytesAllocated uint64
}

// New creates a Heap with the given options, allocating its first
// semispace.
func New(opt Options) (*Heap, error) {
	size := opt.Bytes
	if size == 0 {
		size = DefaultBytes
	}
	if size < MinBytes {
		return nil, fmt.Errorf("heap: size %d below minimum sensible size %d", size, MinBytes)
	}
	if uint32(size) > object.MaxHeapBytes {
		return nil, fmt.Errorf("heap: size %d exceeds maximum addressable arena %d", size, object.MaxHeapBytes)
	}
	if opt.Logger == nil {
		opt.Logger = logex.NewLogger(io.Discard)
	}
	a, err := newArena(size)
	if err != nil {
		return nil, fmt.Errorf("heap: allocating arena: %v", err)
	}
	h := &Heap{opt: opt, active: a, symbols: object.Nil}
	return h, nil
}

// Close releases both semispaces.
func (h *Heap) Close() {
	if h.active != nil {
		h.active.release()
		h.active = nil
	}
	if h.other != nil {
		h.other.release()
		h.other = nil
	}
}

// Stats returns a snapshot of the heap's resource usage.
func (h *Heap) Stats() Stats {
	return Stats{
		Cycles:         h.cycles,
		BytesAllocated: h.bytesAllocated,
		InUse:          int(h.free),
		Capacity:       len(h.active.bytes()),
	}
}

// Symbols returns the head of the interned symbol list.
func (h *Heap) Symbols() object.Ref { return h.symbols }

// SetSymbols replaces the head of the interned symbol list. Called by
// internal/reader's symbol interner after consing a new entry.
func (h *Heap) SetSymbols(r object.Ref) { h.symbols = r }

func align(n int) int { return (n + object.Align - 1) &^ (object.Align - 1) }

// --- header access -----------------------------------------------------

func tagAt(buf []byte, off uint32) object.Tag { return object.Tag(buf[off]) }

func setHeader(buf []byte, off uint32, tag object.Tag, size int) {
	buf[off] = byte(tag)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(size))
}

func sizeAt(buf []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(buf[off+4 : off+8])
}

func payloadOff(off uint32) uint32 { return off + object.HeaderSize }

func refAt(buf []byte, off uint32) object.Ref {
	return object.Ref(binary.LittleEndian.Uint32(buf[off : off+4]))
}

func setRefAt(buf []byte, off uint32, r object.Ref) {
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r))
}

func int64At(buf []byte, off uint32) int64 {
	return int64(binary.LittleEndian.Uint64(buf[off : off+8]))
}

func setInt64At(buf []byte, off uint32, v int64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(v))
}

// --- introspection used by the evaluator, printer and GC ----------------

// Tag returns the tag of the value r, or a panic if r is a singleton (the
// singletons have no header to inspect; callers must check r.IsSingleton()
// first).
func (h *Heap) Tag(r object.Ref) object.Tag {
	if r.IsSingleton() {
		panic(fmt.Sprintf("heap: Tag called on singleton %v", r))
	}
	return tagAt(h.active.bytes(), uint32(r))
}

// Size returns the total byte size (header + payload + alignment) of r.
func (h *Heap) Size(r object.Ref) uint32 {
	return sizeAt(h.active.bytes(), uint32(r))
}

// Int returns the integer payload of an Int object.
func (h *Heap) Int(r object.Ref) int64 {
	return int64At(h.active.bytes(), payloadOff(uint32(r)))
}

// Car and Cdr return the two fields of a Cell.
func (h *Heap) Car(r object.Ref) object.Ref { return refAt(h.active.bytes(), payloadOff(uint32(r))) }
func (h *Heap) Cdr(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r))+4)
}

// SetCar and SetCdr mutate a Cell's fields in place.
func (h *Heap) SetCar(r, v object.Ref) { setRefAt(h.active.bytes(), payloadOff(uint32(r)), v) }
func (h *Heap) SetCdr(r, v object.Ref) { setRefAt(h.active.bytes(), payloadOff(uint32(r))+4, v) }

// SymbolName returns the name of a Symbol object.
func (h *Heap) SymbolName(r object.Ref) string {
	buf := h.active.bytes()
	off := payloadOff(uint32(r))
	n := int(buf[off])
	return string(buf[off+1 : off+1+uint32(n)])
}

// PrimitiveIndex returns the index into the evaluator's native-function
// table that a Primitive object refers to.
func (h *Heap) PrimitiveIndex(r object.Ref) uint32 {
	return uint32(refAt(h.active.bytes(), payloadOff(uint32(r))))
}

// FuncParams, FuncBody and FuncEnv return the three fields of a Function
// or Macro object.
func (h *Heap) FuncParams(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r)))
}
func (h *Heap) FuncBody(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r))+4)
}
func (h *Heap) FuncEnv(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r))+8)
}

// EnvVars and EnvUp return the two fields of an Env object.
func (h *Heap) EnvVars(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r)))
}
func (h *Heap) EnvUp(r object.Ref) object.Ref {
	return refAt(h.active.bytes(), payloadOff(uint32(r))+4)
}
func (h *Heap) SetEnvVars(r, v object.Ref) { setRefAt(h.active.bytes(), payloadOff(uint32(r)), v) }

// --- allocation ----------------------------------------------------------

// ensure makes sure size more bytes fit in the active semispace, running a
// collection (possibly more than once is never needed: one Cheney cycle
// either frees enough space or it never will) if necessary.
func (h *Heap) ensure(reg *root.Registry, size int) error {
	if h.opt.AlwaysGC {
		h.Collect(reg)
	}
	if int(h.free)+size > len(h.active.bytes()) {
		h.Collect(reg)
		if int(h.free)+size > len(h.active.bytes()) {
			return ErrOutOfMemory
		}
	}
	return nil
}

func (h *Heap) bumpAlloc(tag object.Tag, payload int) object.Ref {
	size := align(object.HeaderSize + max(payload, 4))
	off := h.free
	buf := h.active.bytes()
	setHeader(buf, off, tag, size)
	h.free += uint32(size)
	h.bytesAllocated += uint64(size)
	return object.Ref(off)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MakeInt allocates a new Int.
func (h *Heap) MakeInt(reg *root.Registry, v int64) (object.Ref, error) {
	if err := h.ensure(reg, align(object.HeaderSize+8)); err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(object.TagInt, 8)
	setInt64At(h.active.bytes(), payloadOff(uint32(r)), v)
	return r, nil
}

// Cons allocates a new Cell with the given car/cdr. car and cdr are pinned
// in a root frame while ensure runs and read back afterwards, so the new
// cell refers to their current addresses even if a GC moved them.
func (h *Heap) Cons(reg *root.Registry, car, cdr object.Ref) (object.Ref, error) {
	f := reg.PushFrame(2)
	*f.Slot(0), *f.Slot(1) = car, cdr
	err := h.ensure(reg, align(object.HeaderSize+8))
	car, cdr = *f.Slot(0), *f.Slot(1)
	reg.PopFrame()
	if err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(object.TagCell, 8)
	buf := h.active.bytes()
	setRefAt(buf, payloadOff(uint32(r)), car)
	setRefAt(buf, payloadOff(uint32(r))+4, cdr)
	return r, nil
}

// MakeSymbolRaw allocates a new, uninterned Symbol with the given name. It
// does not consult or update the symbol table; callers that want interning
// semantics use internal/reader's Intern, which calls this only on a
// cache miss.
func (h *Heap) MakeSymbolRaw(reg *root.Registry, name string) (object.Ref, error) {
	if len(name) > object.SymbolMaxLen {
		return object.Nil, fmt.Errorf("heap: symbol name too long (%d > %d)", len(name), object.SymbolMaxLen)
	}
	payload := 1 + len(name)
	if err := h.ensure(reg, align(object.HeaderSize+payload)); err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(object.TagSymbol, payload)
	buf := h.active.bytes()
	off := payloadOff(uint32(r))
	buf[off] = byte(len(name))
	copy(buf[off+1:off+1+uint32(len(name))], name)
	return r, nil
}

// MakePrimitive allocates a new Primitive referring to native function
// index idx in the evaluator's table.
func (h *Heap) MakePrimitive(reg *root.Registry, idx uint32) (object.Ref, error) {
	if err := h.ensure(reg, align(object.HeaderSize+4)); err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(object.TagPrimitive, 4)
	setRefAt(h.active.bytes(), payloadOff(uint32(r)), object.Ref(idx))
	return r, nil
}

// makeClosure allocates a Function or Macro object.
func (h *Heap) makeClosure(reg *root.Registry, tag object.Tag, params, body, env object.Ref) (object.Ref, error) {
	if err := h.ensure(reg, align(object.HeaderSize+12)); err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(tag, 12)
	buf := h.active.bytes()
	off := payloadOff(uint32(r))
	setRefAt(buf, off, params)
	setRefAt(buf, off+4, body)
	setRefAt(buf, off+8, env)
	return r, nil
}

// MakeFunction allocates a new Function.
func (h *Heap) MakeFunction(reg *root.Registry, params, body, env object.Ref) (object.Ref, error) {
	return h.makeClosure(reg, object.TagFunction, params, body, env)
}

// MakeMacro allocates a new Macro.
func (h *Heap) MakeMacro(reg *root.Registry, params, body, env object.Ref) (object.Ref, error) {
	return h.makeClosure(reg, object.TagMacro, params, body, env)
}

// MakeEnv allocates a new environment frame.
func (h *Heap) MakeEnv(reg *root.Registry, vars, up object.Ref) (object.Ref, error) {
	if err := h.ensure(reg, align(object.HeaderSize+8)); err != nil {
		return object.Nil, err
	}
	r := h.bumpAlloc(object.TagEnv, 8)
	buf := h.active.bytes()
	off := payloadOff(uint32(r))
	setRefAt(buf, off, vars)
	setRefAt(buf, off+4, up)
	return r, nil
}
