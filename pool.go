// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/timandy/routine"
)

// Pool is a tiered allocator instance: one PageCache, one
// CentralCache, and a goroutine-local ThreadCache per goroutine that
// has allocated through it. Most programs only need the package-level
// Allocate/Deallocate functions, which operate on a lazily-initialized
// default Pool (the equivalent of runtime/malloc.go's single
// process-wide mheap_/central caches, initialized once in
// mallocinit).
type Pool struct {
	pages   *pageCache
	central *centralCache
	sys     SystemMemory
	log     logrus.FieldLogger

	// tls holds this Pool's goroutine-local *threadCache instances.
	// Go has no OS-thread-local storage a program can hook into, so
	// "one ThreadCache per logical thread" is realized here as "one
	// ThreadCache per goroutine" via a goroutine-local-storage
	// library rather than a sync.Map keyed by goroutine ID (which
	// has no supported way to obtain a stable key) or a linkname
	// into the runtime's own g structure (unsafe and version-fragile
	// — exactly the portability trap runtime/malloc.go's own
	// "_g_.m.mcache" line is an example of).
	tls routine.ThreadLocal
}

// NewPool builds a Pool backed by sys. A nil sys defaults to
// NewSystemMemory(); a nil log defaults to a discarding logger.
func NewPool(sys SystemMemory, log logrus.FieldLogger) *Pool {
	if sys == nil {
		sys = NewSystemMemory()
	}
	if log == nil {
		log = noopLogger()
	}
	pages := newPageCache(sys, log)
	return &Pool{
		pages:   pages,
		central: newCentralCache(pages, log),
		sys:     sys,
		log:     log,
		tls:     routine.NewThreadLocal(),
	}
}

// currentThreadCache returns the calling goroutine's ThreadCache,
// creating it on first use (ThreadCache.h's "每个线程一个实例"
// lazily-constructed singleton, per goroutine instead of per
// std::thread).
func (p *Pool) currentThreadCache() *threadCache {
	if v := p.tls.Get(); v != nil {
		return v.(*threadCache)
	}
	tc := newThreadCache(p.central)
	p.tls.Set(tc)
	return tc
}

// Allocate returns a pointer to a writable region of at least size
// bytes, aligned to alignment, or nil if the allocator cannot satisfy
// the request. size == 0 is treated as alignment.
func (p *Pool) Allocate(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = alignment
	}
	if size > maxBytes {
		ptr, err := p.sys.AllocBytes(size)
		if err != nil {
			p.log.WithError(err).WithField("size", size).Warn("memorypool: large allocation failed")
			return nil
		}
		return ptr
	}

	index := classIndex(size)
	l, ok := p.currentThreadCache().allocate(index)
	if !ok {
		return nil
	}
	return l.ptr()
}

// Deallocate returns ptr, previously obtained from Allocate with the
// same size (or same size class), to the allocator. ptr == nil is a
// no-op. Passing a mismatched size, a pointer this Pool did not
// return, or double-freeing is undefined behavior the allocator does
// not detect.
func (p *Pool) Deallocate(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	if size == 0 {
		size = alignment
	}
	if size > maxBytes {
		p.sys.FreeBytes(ptr, size)
		return
	}
	index := classIndex(size)
	p.currentThreadCache().deallocate(linkOf(ptr), index)
}

var defaultPool = sync.OnceValue(func() *Pool {
	return NewPool(NewSystemMemory(), nil)
})

// Allocate services size from the package's default Pool. See
// (*Pool).Allocate.
func Allocate(size uintptr) unsafe.Pointer {
	return defaultPool().Allocate(size)
}

// Deallocate returns ptr to the package's default Pool. See
// (*Pool).Deallocate.
func Deallocate(ptr unsafe.Pointer, size uintptr) {
	defaultPool().Deallocate(ptr, size)
}
