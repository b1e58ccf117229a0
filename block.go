// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import "unsafe"

// freeLink is a block address treated as the head of an intrusive
// singly-linked LIFO free list: the first machine word of a free
// block holds the address of the next free block (or zero). This is
// the same trick runtime/mcentral.go's gclinkptr type uses, and the
// one the C++ source spells out explicitly as
// "*reinterpret_cast<void**>(current) = next".
//
// alignment (8 bytes) is required to be >= unsafe.Sizeof(uintptr(0))
// so the link always fits in the smallest block; the const block in
// const.go is only valid on platforms where that holds.
type freeLink uintptr

func init() {
	if alignment < unsafe.Sizeof(uintptr(0)) {
		throw("init", "alignment smaller than pointer width")
	}
}

// next reads the link word stored at the head of this block.
func (l freeLink) next() freeLink {
	return freeLink(*(*uintptr)(unsafe.Pointer(uintptr(l))))
}

// setNext writes n into the link word at the head of this block.
func (l freeLink) setNext(n freeLink) {
	*(*uintptr)(unsafe.Pointer(uintptr(l))) = uintptr(n)
}

// ptr converts the link back into the unsafe.Pointer handed to callers.
func (l freeLink) ptr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(l))
}

// linkOf converts a user-facing pointer back into a freeLink.
func linkOf(p unsafe.Pointer) freeLink {
	return freeLink(uintptr(p))
}

// chainBlocks lays out count blocks of size sz starting at base as a
// singly-linked LIFO in ascending address order, the tie-break this
// package's CentralCache invariants require, and returns the head
// and tail links.
func chainBlocks(base uintptr, sz uintptr, count uintptr) (head, tail freeLink) {
	head = freeLink(base)
	cur := head
	for i := uintptr(1); i < count; i++ {
		next := freeLink(base + i*sz)
		cur.setNext(next)
		cur = next
	}
	cur.setNext(0)
	return head, cur
}
