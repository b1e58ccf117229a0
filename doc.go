// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memorypool is a tiered, size-classed memory allocator for
// high-concurrency workloads dominated by many small, short-lived
// allocations. It is modeled on tcmalloc, the same lineage the Go
// runtime's own allocator (mheap/mcentral/mcache) comes from.
//
// Allocating a small object proceeds up a hierarchy of caches:
//
//	1. Round the size up to one of freeListSize size classes and
//	   look in the calling goroutine's ThreadCache free list. If the
//	   list is not empty, pop an object from it. This requires no
//	   synchronization.
//
//	2. If the ThreadCache free list is empty, refill it by pulling a
//	   batch of objects from the CentralCache free list for that
//	   class. Moving a batch amortizes the cost of contending on the
//	   CentralCache's per-class spinlock.
//
//	3. If the CentralCache free list is empty, replenish it by
//	   allocating a span of pages from the PageCache and chopping that
//	   span into objects of the size class. Allocating a whole span at
//	   once amortizes the cost of the PageCache mutex.
//
//	4. If PageCache has no span large enough, it asks SystemMemory for
//	   a fresh run of pages, amortizing the cost of talking to the
//	   operating system over many future allocations.
//
// Freeing a small object proceeds down the same hierarchy in reverse:
// push onto the ThreadCache list, and once that list grows past
// threadDrainThreshold, drain three quarters of it back to the
// CentralCache.
//
// Requests larger than maxBytes bypass all three tiers and are
// serviced directly by SystemMemory; the allocator does not track
// them.
package memorypool
