// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

// Tunable constants. These mirror Common.h in the C++ source this
// package's tiering is distilled from: a fixed alignment, a ceiling
// on what the tiers service, and the span/batch sizes that amortize
// lock and syscall cost.
const (
	// alignment every size class, and therefore every returned
	// pointer, is a multiple of. Must be >= the size of a pointer so
	// the intrusive free-list link always fits in a block.
	alignment = 8

	// maxBytes is the largest request the tiers service; anything
	// bigger goes straight to SystemMemory.
	maxBytes = 256 * 1024

	// freeListSize is the number of size classes: class i serves
	// blocks of exactly (i+1)*alignment bytes.
	freeListSize = maxBytes / alignment

	// pageSize is the page granularity PageCache deals in.
	pageSize = 4096

	// spanPages is the default span size fetched from PageCache for
	// any class whose block fits inside it.
	spanPages = 8

	// threadDrainThreshold is the free-list length above which a
	// ThreadCache drains a portion of its list back to the
	// CentralCache.
	threadDrainThreshold = 64
)

// classIndex returns the size-class index for a request of n bytes:
// index = ((max(n, alignment) + alignment - 1) / alignment) - 1.
func classIndex(n uintptr) int {
	if n < alignment {
		n = alignment
	}
	return int((n+alignment-1)/alignment) - 1
}

// classSize returns the exact block size served by class index i.
func classSize(index int) uintptr {
	return uintptr(index+1) * alignment
}

// roundUp rounds n up to the nearest multiple of alignment, the same
// rounding SizeClass::roundUp performs in the C++ source.
func roundUp(n uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}
