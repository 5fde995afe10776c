// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package heap

import (
	"fmt"

	"github.com/uniot-io/go-minilisp/internal/object"
	"github.com/uniot-io/go-minilisp/internal/root"
)

// Collect runs one full Cheney copying-collection cycle:
// allocate a fresh to-space, forward every root (the registry's shadow
// stack plus the interned symbol list), then scan to-space forwarding each
// surviving object's internal references until the scan cursor catches the
// free cursor. Afterwards the old semispace is released; the next cycle
// allocates a fresh to-space of its own.
func (h *Heap) Collect(reg *root.Registry) {
	if h.gcRunning {
		panic("heap: GC invoked reentrantly")
	}
	h.gcRunning = true
	defer func() { h.gcRunning = false }()

	capacity := len(h.active.bytes())
	to, err := newArena(capacity)
	if err != nil {
		panic(fmt.Sprintf("heap: allocating to-space: %v", err))
	}
	from := h.active

	var free uint32
	moved := 0

	forward := func(r object.Ref) object.Ref {
		if r.IsSingleton() {
			return r
		}
		fb := from.bytes()
		if tagAt(fb, uint32(r)) == object.TagMoved {
			return refAt(fb, payloadOff(uint32(r)))
		}
		size := sizeAt(fb, uint32(r))
		tb := to.bytes()
		copy(tb[free:free+size], fb[uint32(r):uint32(r)+size])
		newAddr := object.Ref(free)
		free += size
		moved++
		// Leave a forwarding tombstone at the object's old address. The
		// size field is preserved so a second forward() of the same
		// reference (found via another edge) still reads a consistent
		// header before noticing the Moved tag.
		setHeader(fb, uint32(r), object.TagMoved, int(size))
		setRefAt(fb, payloadOff(uint32(r)), newAddr)
		return newAddr
	}

	reg.ForEachSlot(func(slot root.Handle) {
		*slot = forward(*slot)
	})
	h.symbols = forward(h.symbols)

	var scan uint32
	for scan < free {
		tb := to.bytes()
		tag := tagAt(tb, scan)
		size := sizeAt(tb, scan)
		off := payloadOff(scan)
		switch tag {
		case object.TagCell, object.TagEnv:
			setRefAt(tb, off, forward(refAt(tb, off)))
			setRefAt(tb, off+4, forward(refAt(tb, off+4)))
		case object.TagFunction, object.TagMacro:
			setRefAt(tb, off, forward(refAt(tb, off)))
			setRefAt(tb, off+4, forward(refAt(tb, off+4)))
			setRefAt(tb, off+8, forward(refAt(tb, off+8)))
		case object.TagInt, object.TagSymbol, object.TagPrimitive:
			// no outgoing references
		default:
			panic(fmt.Sprintf("heap: GC scan found unexpected tag %v at offset %#x", tag, scan))
		}
		scan += size
	}

	from.release()
	h.active = to
	h.other = nil
	h.free = free
	h.cycles++

	if h.opt.DebugGC {
		h.opt.Logger.Printf("gc: cycle=%d semispace=%dB moved=%d retained=%dB", h.cycles, capacity, moved, free)
	}
}
