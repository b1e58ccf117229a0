// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

// span is a contiguous run of pages obtained from SystemMemory and
// tracked by PageCache, the Go equivalent of original_source/v2's
// PageCache::Span (pageAddr/numPages/next) plus runtime/mheap.go's
// mspan concept of "a run of pages managed by the heap". Unlike
// mspan, a span here carries no GC/sweep bookkeeping — this
// allocator has none of that concern.
type span struct {
	start    uintptr // page-aligned start address
	numPages uintptr // page count
}

// end returns the address one past the last byte of the span.
func (s *span) end() uintptr {
	return s.start + s.numPages*pageSize
}

// adjacent reports whether s immediately precedes other in address
// space, the condition PageCache.deallocateSpan uses to decide
// whether two free spans may be coalesced into one.
func (s *span) adjacent(other *span) bool {
	return s.end() == other.start
}
