// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package heap

// arena is the raw storage behind one semispace. It is implemented by
// arena_unix.go (an anonymous golang.org/x/sys/unix.Mmap region — memory
// Go's own collector never scans, so nothing keeps objects living there
// alive except the root registry and the GC's own reachability walk) and
// arena_other.go (a plain Go slice, for platforms without the unix mmap
// family).
type arena interface {
	bytes() []byte
	release()
}
