// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package heap

import "golang.org/x/sys/unix"

// mmapArena backs a semispace with an anonymous mapping obtained directly
// from the kernel, the way the original C interpreter's arena is a raw
// malloc'd block rather than a language-managed allocation. Using
// golang.org/x/sys/unix (a direct teacher dependency, also used by its
// core-dump and ptrace code) instead of make([]byte, ...) keeps the arena
// genuinely invisible to Go's garbage collector, which is what makes the
// shadow-stack root registry (internal/root) load-bearing rather than
// redundant.
type mmapArena struct {
	buf []byte
}

func newArena(size int) (arena, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &mmapArena{buf: buf}, nil
}

func (a *mmapArena) bytes() []byte { return a.buf }

func (a *mmapArena) release() {
	if a.buf != nil {
		unix.Munmap(a.buf)
		a.buf = nil
	}
}
