// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newTestThreadCache() *threadCache {
	pages := newPageCache(NewHeapSystemMemory(), nil)
	central := newCentralCache(pages, nil)
	return newThreadCache(central)
}

func TestThreadCacheAllocateRefillsFromCentral(t *testing.T) {
	tc := newTestThreadCache()
	index := classIndex(16)

	addr, ok := tc.allocate(index)
	require.True(t, ok)
	require.NotZero(t, addr)

	// refill should have stocked the local list with the rest of the
	// batch, so a second allocate is served without touching central.
	require.Greater(t, tc.freeListSize[index], uintptr(0))
}

func TestThreadCacheAllocateIsLIFO(t *testing.T) {
	tc := newTestThreadCache()
	index := classIndex(16)

	a, ok := tc.allocate(index)
	require.True(t, ok)
	tc.deallocate(a, index)

	b, ok := tc.allocate(index)
	require.True(t, ok)
	require.Equal(t, a, b, "the most recently freed block is handed back out first")
}

func TestThreadCacheDrainKeepsQuarter(t *testing.T) {
	tc := newTestThreadCache()
	index := classIndex(16)
	blockSize := classSize(index)

	// Build a 65-block chain directly rather than driving it through
	// deallocate one push at a time: deallocate checks the threshold
	// after every single push, so a steady stream of individual frees
	// only ever lets the list reach exactly threadDrainThreshold+1
	// before draining. Loading the list directly exercises drain's
	// n/4 arithmetic for a list length of the caller's choosing.
	const n = 65
	backing := make([]byte, blockSize*n)
	base := uintptr(unsafe.Pointer(&backing[0]))
	head, _ := chainBlocks(base, blockSize, n)

	tc.freeList[index] = head
	tc.freeListSize[index] = n

	tc.drain(index)

	require.Equal(t, uintptr(n/4), tc.freeListSize[index])

	fromCentral := tc.central.fetchRange(index, 1)
	require.NotZero(t, fromCentral, "drained blocks were returned to central")
}

func TestGetBatchNumRespectsByteCap(t *testing.T) {
	require.Equal(t, uintptr(64), getBatchNum(8))
	require.Equal(t, uintptr(1), getBatchNum(8192))
	require.GreaterOrEqual(t, getBatchNum(1), uintptr(1))
}
