// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package printer serializes heap values back to source text. It writes
// directly to an io.Writer rather than building strings, the way the
// original interpreter's print_obj writes to a sink one fragment at a
// time, with no fixed-size intermediate buffer.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/uniot-io/go-minilisp/internal/heap"
	"github.com/uniot-io/go-minilisp/internal/object"
)

// Fprint writes the printed representation of r to w.
func Fprint(w io.Writer, h *heap.Heap, r object.Ref) error {
	switch r {
	case object.Nil:
		_, err := io.WriteString(w, "()")
		return err
	case object.True:
		_, err := io.WriteString(w, "#t")
		return err
	case object.Dot:
		_, err := io.WriteString(w, ".")
		return err
	case object.Cparen:
		_, err := io.WriteString(w, ")")
		return err
	}

	switch h.Tag(r) {
	case object.TagInt:
		_, err := fmt.Fprintf(w, "%d", h.Int(r))
		return err
	case object.TagSymbol:
		_, err := io.WriteString(w, h.SymbolName(r))
		return err
	case object.TagCell:
		return printList(w, h, r)
	case object.TagPrimitive:
		_, err := io.WriteString(w, "<primitive>")
		return err
	case object.TagFunction:
		_, err := io.WriteString(w, "<function>")
		return err
	case object.TagMacro:
		_, err := io.WriteString(w, "<macro>")
		return err
	case object.TagEnv:
		_, err := io.WriteString(w, "<env>")
		return err
	case object.TagMoved:
		// The printer must never see a tombstone in live code: any Ref it
		// is handed is either a root or reachable from one, and a
		// completed GC cycle leaves no Moved objects reachable from a
		// root. Seeing one here means a caller held a Ref across an
		// allocation without registering it.
		panic("printer: encountered a Moved tombstone")
	default:
		panic(fmt.Sprintf("printer: unknown tag %v", h.Tag(r)))
	}
}

// printList writes a Cell as a parenthesized list, switching to dotted-pair
// notation when the final cdr is not Nil.
func printList(w io.Writer, h *heap.Heap, r object.Ref) error {
	if _, err := io.WriteString(w, "("); err != nil {
		return err
	}
	first := true
	for {
		if !first {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		first = false
		if err := Fprint(w, h, h.Car(r)); err != nil {
			return err
		}
		cdr := h.Cdr(r)
		if cdr == object.Nil {
			break
		}
		if cdr.IsSingleton() || h.Tag(cdr) != object.TagCell {
			if _, err := io.WriteString(w, " . "); err != nil {
				return err
			}
			if err := Fprint(w, h, cdr); err != nil {
				return err
			}
			break
		}
		r = cdr
	}
	_, err := io.WriteString(w, ")")
	return err
}

// Sprint is a convenience wrapper returning the printed representation as a
// string, used by tests and by the evaluator's error messages.
func Sprint(h *heap.Heap, r object.Ref) string {
	var b strings.Builder
	_ = Fprint(&b, h, r)
	return b.String()
}
