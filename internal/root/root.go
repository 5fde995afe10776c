// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package root implements the shadow-stack root registry: an explicit
// linked list of frames of native-held object handles, standing in for a
// precise stack map the Go runtime cannot give us over our own manually
// managed heap (internal/heap never stores a real Go pointer into the
// arena, only byte offsets, so Go's collector has nothing to scan there —
// this package is what keeps those offsets valid across a move).
package root

import "github.com/uniot-io/go-minilisp/internal/object"

// A Handle is a slot a native caller may read and write; the garbage
// collector rewrites it in place when the object it names moves. Callers
// never hold a bare object.Ref across a call that might allocate — they
// hold a Handle into a pushed Frame instead.
type Handle = *object.Ref

// Frame is one scope's worth of root slots, initialized to Nil and unlinked
// from its parent only when the scope that pushed it returns.
type Frame struct {
	prev  *Frame
	slots []object.Ref
}

// Slot returns the handle for the i'th root in this frame.
func (f *Frame) Slot(i int) Handle {
	return &f.slots[i]
}

// Registry is the shadow stack itself: a per-interpreter chain of frames.
type Registry struct {
	top *Frame
}

// PushFrame allocates a new frame of n root slots, all initially Nil, and
// links it above the current top of stack. It must be called before any
// allocating operation that will populate the frame's slots, and unwound
// with PopFrame on every exit path, normal or error.
func (r *Registry) PushFrame(n int) *Frame {
	f := &Frame{prev: r.top, slots: make([]object.Ref, n)}
	for i := range f.slots {
		f.slots[i] = object.Nil
	}
	r.top = f
	return f
}

// PopFrame unlinks the most recently pushed frame.
func (r *Registry) PopFrame() {
	if r.top == nil {
		panic("root: PopFrame on empty registry")
	}
	r.top = r.top.prev
}

// PushFrame1 through PushFrame4 are convenience constructors mirroring the
// original C's DEFINE1..DEFINE4 macros, which never pinned more than four
// roots in a single native call.
func (r *Registry) PushFrame1() (*Frame, Handle) {
	f := r.PushFrame(1)
	return f, f.Slot(0)
}

func (r *Registry) PushFrame2() (*Frame, Handle, Handle) {
	f := r.PushFrame(2)
	return f, f.Slot(0), f.Slot(1)
}

func (r *Registry) PushFrame3() (*Frame, Handle, Handle, Handle) {
	f := r.PushFrame(3)
	return f, f.Slot(0), f.Slot(1), f.Slot(2)
}

func (r *Registry) PushFrame4() (*Frame, Handle, Handle, Handle, Handle) {
	f := r.PushFrame(4)
	return f, f.Slot(0), f.Slot(1), f.Slot(2), f.Slot(3)
}

// ForEachSlot calls fn once for every live root slot across every frame on
// the stack, from most to least recently pushed. The GC uses this to
// forward every native-held reference in one pass.
func (r *Registry) ForEachSlot(fn func(Handle)) {
	for f := r.top; f != nil; f = f.prev {
		for i := range f.slots {
			fn(&f.slots[i])
		}
	}
}

// Depth returns the number of frames currently pushed, for assertions in
// tests.
func (r *Registry) Depth() int {
	n := 0
	for f := r.top; f != nil; f = f.prev {
		n++
	}
	return n
}
