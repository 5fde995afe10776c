// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package env implements the environment-frame model: each
// frame is a heap Env object whose vars field is an association list of
// (symbol . value) cells, linked to an enclosing frame via an up pointer.
//
// Lookup returns the (symbol . value) binding cell itself, not just the
// value, so that setq can mutate a binding in place — this is what makes a
// closure's captured variable shared with the frame it closed over, rather
// than copied at capture time.
package env

import (
	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// New allocates a fresh, empty frame linked above up (object.Nil for the
// top-level global frame).
func New(h *heap.Heap, reg *root.Registry, up object.Ref) (object.Ref, error) {
	return h.MakeEnv(reg, object.Nil, up)
}

// Lookup walks env and its ancestors looking for a binding whose symbol is
// sym (compared by Ref identity, — interning guarantees
// this is sound). It returns the (symbol . value) cell itself, or
// (object.Nil, false) if no frame up to and including the global frame
// binds sym.
func Lookup(h *heap.Heap, env, sym object.Ref) (object.Ref, bool) {
	for e := env; e != object.Nil; e = h.EnvUp(e) {
		for p := h.EnvVars(e); p != object.Nil; p = h.Cdr(p) {
			cell := h.Car(p)
			if h.Car(cell) == sym {
				return cell, true
			}
		}
	}
	return object.Nil, false
}

// LookupLocal is Lookup restricted to env's own frame, not its ancestors —
// used by define/defun/defmacro to detect "already defined in this frame"
//.
func LookupLocal(h *heap.Heap, env, sym object.Ref) (object.Ref, bool) {
	for p := h.EnvVars(env); p != object.Nil; p = h.Cdr(p) {
		cell := h.Car(p)
		if h.Car(cell) == sym {
			return cell, true
		}
	}
	return object.Nil, false
}

// Define binds sym to val in env itself (not an ancestor), prepending a new
// binding cell to env's vars list. Define itself does not reject a symbol
// already bound in the same frame (the define/defun/defmacro forms check
// LookupLocal first); such a second Define shadows the earlier binding
// rather than mutating it: Lookup sees the newest cell, because it walks
// vars from the most recently prepended entry.
func Define(h *heap.Heap, reg *root.Registry, env, sym, val object.Ref) error {
	frame, hEnv, hSym, hVal := reg.PushFrame3()
	_ = frame
	defer reg.PopFrame()
	*hEnv, *hSym, *hVal = env, sym, val

	cell, err := h.Cons(reg, *hSym, *hVal)
	if err != nil {
		return err
	}

	frame2, hCell := reg.PushFrame1()
	_ = frame2
	defer reg.PopFrame()
	*hCell = cell

	newVars, err := h.Cons(reg, *hCell, h.EnvVars(*hEnv))
	if err != nil {
		return err
	}
	h.SetEnvVars(*hEnv, newVars)
	return nil
}

// Value returns the value half of a binding cell returned by Lookup.
func Value(h *heap.Heap, cell object.Ref) object.Ref { return h.Cdr(cell) }

// SetValue mutates the value half of a binding cell in place — this is
// what setq and the privileged #itr mutation
// both do.
func SetValue(h *heap.Heap, cell, val object.Ref) { h.SetCdr(cell, val) }
