// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestPool() *Pool {
	return NewPool(NewHeapSystemMemory(), nil)
}

// TestBasicAllocation mirrors testBasicAllocation: allocate a handful
// of distinct sizes, confirm each is non-nil, and free them all.
func TestBasicAllocation(t *testing.T) {
	p := newTestPool()
	sizes := []uintptr{1, 8, 17, 128, 1000, maxBytes}

	ptrs := make([]unsafe.Pointer, len(sizes))
	for i, sz := range sizes {
		ptr := p.Allocate(sz)
		require.NotNil(t, ptr, "size %d", sz)
		ptrs[i] = ptr
	}
	for i, sz := range sizes {
		p.Deallocate(ptrs[i], sz)
	}
}

// TestAllocateDeallocateRoundTripIsLIFO exercises the basic
// allocate/deallocate round trip through Pool itself, not just a tier
// underneath it: freeing a block and immediately allocating the same
// size must hand the same address back out. This is the
// LIFO-temperature law — the most recently freed block is the
// "warmest" and goes out first — and it only holds end to end if
// Pool.Allocate/Deallocate route both calls to the same ThreadCache
// instance for the calling goroutine.
func TestAllocateDeallocateRoundTripIsLIFO(t *testing.T) {
	p := newTestPool()
	const size = 8

	a := p.Allocate(size)
	require.NotNil(t, a)
	p.Deallocate(a, size)

	b := p.Allocate(size)
	require.NotNil(t, b)
	require.Equal(t, a, b, "Pool.Deallocate then Pool.Allocate must hand back the same block")
}

// TestMemoryWriting mirrors testMemoryWriting: every byte of an
// allocated block must be writable and independently readable back,
// with no overlap between distinct allocations.
func TestMemoryWriting(t *testing.T) {
	p := newTestPool()
	const size = 128

	a := p.Allocate(size)
	b := p.Allocate(size)
	require.NotNil(t, a)
	require.NotNil(t, b)

	bufA := unsafe.Slice((*byte)(a), size)
	bufB := unsafe.Slice((*byte)(b), size)
	for i := range bufA {
		bufA[i] = byte(i)
		bufB[i] = byte(255 - i)
	}
	for i := range bufA {
		require.Equal(t, byte(i), bufA[i])
		require.Equal(t, byte(255-i), bufB[i])
	}

	p.Deallocate(a, size)
	p.Deallocate(b, size)
}

// TestEdgeCases mirrors testEdgeCases: size 0 is serviced as an
// alignment-sized block, MAX_BYTES is the largest size the tiers
// service, and MAX_BYTES+1 bypasses them.
func TestEdgeCases(t *testing.T) {
	p := newTestPool()

	zero := p.Allocate(0)
	require.NotNil(t, zero)
	p.Deallocate(zero, 0)

	atMax := p.Allocate(maxBytes)
	require.NotNil(t, atMax)
	p.Deallocate(atMax, maxBytes)

	overMax := p.Allocate(maxBytes + 1)
	require.NotNil(t, overMax)
	p.Deallocate(overMax, maxBytes+1)
}

// TestMultiThreading mirrors testMultiThreading: several goroutines
// each perform many allocate/deallocate cycles concurrently. Each
// goroutine gets its own ThreadCache, so the only shared state under
// contention is CentralCache and PageCache.
func TestMultiThreading(t *testing.T) {
	p := newTestPool()
	const goroutines = 4
	const opsPerGoroutine = 1000

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(i)))
			live := make([]struct {
				ptr  unsafe.Pointer
				size uintptr
			}, 0, 64)

			for j := 0; j < opsPerGoroutine; j++ {
				if len(live) > 0 && (rng.Intn(2) == 0 || len(live) >= 64) {
					idx := rng.Intn(len(live))
					p.Deallocate(live[idx].ptr, live[idx].size)
					live[idx] = live[len(live)-1]
					live = live[:len(live)-1]
					continue
				}
				size := uintptr(rng.Intn(2048) + 1)
				ptr := p.Allocate(size)
				if ptr == nil {
					return fmt.Errorf("allocate(%d) returned nil", size)
				}
				live = append(live, struct {
					ptr  unsafe.Pointer
					size uintptr
				}{ptr, size})
			}
			for _, l := range live {
				p.Deallocate(l.ptr, l.size)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// TestStress mirrors testStress: a single goroutine allocates a large
// number of blocks of random size, shuffles the order, and frees them
// all, exercising ThreadCache refill and CentralCache/PageCache growth
// across many size classes. Spread over 512 classes, no single class
// collects enough frees to trigger a ThreadCache drain.
func TestStress(t *testing.T) {
	p := newTestPool()
	const n = 10000

	type block struct {
		ptr  unsafe.Pointer
		size uintptr
	}
	blocks := make([]block, n)
	for i := range blocks {
		size := uintptr(rand.Intn(4096) + 1)
		ptr := p.Allocate(size)
		require.NotNil(t, ptr)
		blocks[i] = block{ptr, size}
	}

	rand.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })

	for _, b := range blocks {
		p.Deallocate(b.ptr, b.size)
	}
}

// TestDefaultPoolIsSharedAcrossGoroutines exercises the package-level
// Allocate/Deallocate entry points from several goroutines at once,
// each allocating and freeing through the same default Pool without
// needing its own constructor call.
func TestDefaultPoolIsSharedAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ptr := Allocate(64)
			require.NotNil(t, ptr)
			Deallocate(ptr, 64)
		}()
	}
	wg.Wait()
}
